package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSequenceExhausted means the day's order-number range is used up:
	// the next sequence would not fit in the three-digit suffix.
	ErrSequenceExhausted = errors.New("daily order number sequence exhausted")
)

// orderNumberPrefix starts every order number; the full shape is
// DH<yyyymmdd><three-digit sequence>, e.g. DH20250601042.
const orderNumberPrefix = "DH"

const orderNumberDateFormat = "20060102"

// maxDailySequence is the largest sequence the three-digit suffix can hold.
const maxDailySequence = 999

type OrderFilter struct {
	UserID        uint
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	PaymentMethod model.PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	Limit         int
}

// OrderStats aggregates counts and revenue for the admin dashboard.
type OrderStats struct {
	TotalOrders     int64                       `json:"total_orders"`
	CountsByStatus  map[model.OrderStatus]int64 `json:"counts_by_status"`
	PaidRevenue     float64                     `json:"paid_revenue"`
	PendingPayments int64                       `json:"pending_payments"`
}

type OrderRepository interface {
	Create(tx *gorm.DB, order *model.Order) error
	FindByID(id uint) (*model.Order, error)
	FindByOrderNumber(orderNumber string) (*model.Order, error)
	// FindByOrderNumberForUpdate locks the order row inside tx so two
	// reconciliation channels cannot interleave on the same order.
	FindByOrderNumberForUpdate(tx *gorm.DB, orderNumber string) (*model.Order, error)
	FindByUserID(userID uint) ([]model.Order, error)
	FindAll(filter OrderFilter) ([]model.Order, int64, error)
	Save(tx *gorm.DB, order *model.Order) error
	// NextOrderNumber computes the next DH number for the given day by
	// inspecting existing orders inside tx. The unique index on
	// order_number is the final arbiter under concurrency; callers retry
	// on duplicate key.
	NextOrderNumber(tx *gorm.DB, now time.Time) (string, error)
	// FindStaleUnpaid returns online orders placed before the cutoff whose
	// payment is still pending or failed. The expiry job cancels them.
	FindStaleUnpaid(method model.PaymentMethod, cutoff time.Time) ([]model.Order, error)
	Stats() (*OrderStats, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder(db *gorm.DB) *gorm.DB {
	return db.Preload("OrderItems").Preload("User")
}

func (r *orderRepository) Create(tx *gorm.DB, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total_amount": order.TotalAmount,
	})

	if err := tx.Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_number": order.OrderNumber,
			"user_id":      order.UserID,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return nil
}

func (r *orderRepository) FindByID(id uint) (*model.Order, error) {
	logger.Debug("Finding order by ID in database", map[string]interface{}{
		"order_id": id,
	})

	var order model.Order
	if err := r.preloadOrder(r.db).First(&order, id).Error; err != nil {
		logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}

	return &order, nil
}

func (r *orderRepository) FindByOrderNumber(orderNumber string) (*model.Order, error) {
	logger.Debug("Finding order by number in database", map[string]interface{}{
		"order_number": orderNumber,
	})

	var order model.Order
	if err := r.preloadOrder(r.db).
		Where("order_number = ?", orderNumber).
		First(&order).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find order by number in database", err, map[string]interface{}{
				"order_number": orderNumber,
			})
		}
		return nil, err
	}

	return &order, nil
}

func (r *orderRepository) FindByOrderNumberForUpdate(tx *gorm.DB, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("OrderItems").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to lock order by number", err, map[string]interface{}{
				"order_number": orderNumber,
			})
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(userID uint) ([]model.Order, error) {
	logger.Debug("Finding orders by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var orders []model.Order
	if err := r.preloadOrder(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) FindAll(filter OrderFilter) ([]model.Order, int64, error) {
	logger.Debug("Finding orders", map[string]interface{}{
		"status":         filter.Status,
		"payment_status": filter.PaymentStatus,
		"user_id":        filter.UserID,
	})

	query := r.db.Model(&model.Order{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.DateFrom != nil {
		query = query.Where("order_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("order_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count orders in database", err)
		return nil, 0, err
	}

	if filter.Limit > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.Limit
		}
		query = query.Offset(offset).Limit(filter.Limit)
	}

	var orders []model.Order
	if err := r.preloadOrder(query).Order("created_at DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders in database", err)
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) Save(tx *gorm.DB, order *model.Order) error {
	logger.Debug("Saving order in database", map[string]interface{}{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})

	if err := tx.Save(order).Error; err != nil {
		logger.Error("Failed to save order in database", err, map[string]interface{}{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		})
		return err
	}

	return nil
}

func (r *orderRepository) NextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	datePart := now.Format(orderNumberDateFormat)
	prefix := orderNumberPrefix + datePart

	// Soft-deleted orders keep their number, so scan with Unscoped: a
	// cancelled-and-purged order's number must never be reissued.
	var latest string
	err := tx.Unscoped().Model(&model.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &latest).Error
	if err != nil {
		logger.Error("Failed to read latest order number", err, map[string]interface{}{
			"prefix": prefix,
		})
		return "", err
	}

	seq := 1
	if latest != "" {
		suffix := strings.TrimPrefix(latest, prefix)
		parsed, err := strconv.Atoi(suffix)
		if err != nil {
			logger.Error("Malformed order number in database", err, map[string]interface{}{
				"order_number": latest,
			})
			return "", fmt.Errorf("malformed order number %q: %w", latest, err)
		}
		seq = parsed + 1
	}

	if seq > maxDailySequence {
		return "", ErrSequenceExhausted
	}

	return fmt.Sprintf("%s%03d", prefix, seq), nil
}

func (r *orderRepository) FindStaleUnpaid(method model.PaymentMethod, cutoff time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.Preload("OrderItems").
		Where("payment_method = ?", method).
		Where("status = ?", model.OrderStatusPending).
		// A failed attempt leaves the order pending so the customer can
		// retry; once the window lapses it is just as stale as untouched.
		Where("payment_status IN ?", []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusFailed}).
		Where("order_date < ?", cutoff).
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find stale unpaid orders", err, map[string]interface{}{
			"payment_method": method,
			"cutoff":         cutoff,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) Stats() (*OrderStats, error) {
	logger.Debug("Computing order stats")

	stats := &OrderStats{
		CountsByStatus: make(map[model.OrderStatus]int64),
	}

	if err := r.db.Model(&model.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		logger.Error("Failed to count orders for stats", err)
		return nil, err
	}

	type statusCount struct {
		Status model.OrderStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.Model(&model.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		logger.Error("Failed to group orders by status", err)
		return nil, err
	}
	for _, row := range rows {
		stats.CountsByStatus[row.Status] = row.Count
	}

	if err := r.db.Model(&model.Order{}).
		Where("payment_status = ?", model.PaymentStatusPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&stats.PaidRevenue).Error; err != nil {
		logger.Error("Failed to sum paid revenue", err)
		return nil, err
	}

	if err := r.db.Model(&model.Order{}).
		Where("payment_status = ?", model.PaymentStatusPending).
		Count(&stats.PendingPayments).Error; err != nil {
		logger.Error("Failed to count pending payments", err)
		return nil, err
	}

	return stats, nil
}
