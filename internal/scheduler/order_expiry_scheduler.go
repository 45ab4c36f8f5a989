package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

// OrderExpiryScheduler periodically cancels gateway orders whose payment
// window ran out, releasing their reserved stock.
type OrderExpiryScheduler struct {
	cron         *cron.Cron
	orderService service.OrderService
	spec         string
	maxAge       time.Duration
}

func NewOrderExpiryScheduler(orderService service.OrderService, spec string, maxAge time.Duration) *OrderExpiryScheduler {
	return &OrderExpiryScheduler{
		cron:         cron.New(),
		orderService: orderService,
		spec:         spec,
		maxAge:       maxAge,
	}
}

func (s *OrderExpiryScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		count, err := s.orderService.ExpireStaleOrders(s.maxAge)
		if err != nil {
			logger.Error("Order expiry sweep failed", err)
			return
		}
		if count > 0 {
			logger.Info("Expired unpaid orders", map[string]interface{}{
				"cancelled": count,
			})
		}
	})

	if err != nil {
		logger.Error("Failed to schedule order expiry job", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Order expiry scheduler started", map[string]interface{}{
		"spec":    s.spec,
		"max_age": s.maxAge.String(),
	})

	return nil
}

func (s *OrderExpiryScheduler) Stop() {
	logger.Info("Stopping order expiry scheduler...", nil)
	s.cron.Stop()
	logger.Info("Order expiry scheduler stopped", nil)
}
