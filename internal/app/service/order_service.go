package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrCartInvalid             = errors.New("cart failed validation")
	ErrIllegalStatusTransition = errors.New("illegal order status transition")
	ErrCancelNotAllowed        = errors.New("order can no longer be cancelled")
	ErrOrderNumberExhausted    = errors.New("order number allocation failed")
	ErrStockRaceLost           = errors.New("stock was taken by a concurrent order")
	ErrInvalidPaymentMethod    = errors.New("unsupported payment method")
	ErrInvalidPaymentStatus    = errors.New("unknown payment status")
)

// createRetries bounds the duplicate-order-number retry loop. Two retries
// cover concurrent checkouts racing for the same daily sequence slot.
const createRetries = 3

type CreateOrderInput struct {
	CustomerInfo  model.CustomerInfo
	PaymentMethod model.PaymentMethod
	CustomerNotes string
}

type OrderService interface {
	CreateOrderFromCart(userID uint, input CreateOrderInput) (*model.Order, error)
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByNumber(orderNumber string, userID uint, isAdmin bool) (*model.Order, error)
	ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error)
	UpdateOrderStatus(orderNumber string, status model.OrderStatus, adminNotes string) (*model.Order, error)
	UpdatePaymentStatus(orderNumber string, status model.PaymentStatus) (*model.Order, error)
	CancelOrder(orderNumber string, userID uint, isAdmin bool, reason string) (*model.Order, error)
	// ExpireStaleOrders cancels gateway orders that never got paid within
	// maxAge. Returns how many orders were cancelled.
	ExpireStaleOrders(maxAge time.Duration) (int, error)
	Stats() (*repository.OrderStats, error)
	ExportOrders(filter repository.OrderFilter) (*excelize.File, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	db          *gorm.DB
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	db *gorm.DB,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		db:          db,
	}
}

func validPaymentMethod(method model.PaymentMethod) bool {
	switch method {
	case model.PaymentMethodCOD, model.PaymentMethodBankTransfer, model.PaymentMethodVnpay:
		return true
	}
	return false
}

func (s *orderService) CreateOrderFromCart(userID uint, input CreateOrderInput) (*model.Order, error) {
	logger.Info("Creating order from cart", map[string]interface{}{
		"user_id":        userID,
		"payment_method": input.PaymentMethod,
	})

	if !validPaymentMethod(input.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	cartItems, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		logger.Warn("Cannot create order: cart is empty", map[string]interface{}{
			"user_id": userID,
		})
		return nil, ErrEmptyCart
	}

	// The order number has a unique index; when two checkouts allocate the
	// same daily sequence, the loser's insert fails and the whole
	// transaction is retried with a fresh number.
	var lastErr error
	for attempt := 1; attempt <= createRetries; attempt++ {
		order, err := s.createOrderTx(userID, input, cartItems)
		if err == nil {
			logger.Info("Order created", map[string]interface{}{
				"order_number": order.OrderNumber,
				"user_id":      userID,
				"total_amount": order.TotalAmount,
				"attempt":      attempt,
			})
			return order, nil
		}
		if !apperrors.IsDuplicateKey(err) {
			return nil, err
		}
		logger.Warn("Order number collision, retrying", map[string]interface{}{
			"user_id": userID,
			"attempt": attempt,
		})
		lastErr = err
	}

	logger.Error("Order number retries exhausted", lastErr, map[string]interface{}{
		"user_id": userID,
	})
	return nil, ErrOrderNumberExhausted
}

// createOrderTx runs one attempt of the checkout transaction.
func (s *orderService) createOrderTx(userID uint, input CreateOrderInput, cartItems []model.CartItem) (*model.Order, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during order creation, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": userID,
			})
		}
	}()

	now := time.Now()

	var (
		subtotal   float64
		orderItems []model.OrderItem
	)
	for _, cartItem := range cartItems {
		var product model.Product
		if err := tx.First(&product, cartItem.ProductID).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("Product disappeared during checkout", map[string]interface{}{
					"user_id":    userID,
					"product_id": cartItem.ProductID,
				})
				return nil, fmt.Errorf("%w: %s", ErrCartInvalid, cartItem.ProductName)
			}
			return nil, err
		}
		if !product.IsActive {
			tx.Rollback()
			return nil, fmt.Errorf("%w: %s is no longer for sale", ErrCartInvalid, product.Name)
		}
		if product.Stock < cartItem.Quantity {
			tx.Rollback()
			return nil, fmt.Errorf("%w: %s has only %d in stock", ErrCartInvalid, product.Name, product.Stock)
		}

		// The customer is billed the price they put in the cart; catalog
		// repricing after that only surfaces as a ValidateCart warning.
		lineTotal := float64(cartItem.Quantity) * cartItem.UnitPrice
		subtotal += lineTotal
		orderItems = append(orderItems, model.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			Quantity:    cartItem.Quantity,
			UnitPrice:   cartItem.UnitPrice,
			TotalPrice:  lineTotal,
			Snapshot: model.ProductSnapshot{
				Description: product.Description,
				Images:      product.Images,
				Brand:       product.Brand,
				Category:    product.Category,
			},
		})
	}

	orderNumber, err := s.orderRepo.NextOrderNumber(tx, now)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, repository.ErrSequenceExhausted) {
			return nil, ErrOrderNumberExhausted
		}
		return nil, err
	}

	order := &model.Order{
		OrderNumber:   orderNumber,
		UserID:        userID,
		CustomerInfo:  input.CustomerInfo,
		Status:        model.OrderStatusPending,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: model.PaymentStatusPending,
		Subtotal:      subtotal,
		TotalAmount:   subtotal,
		OrderDate:     now,
		CustomerNotes: input.CustomerNotes,
		OrderItems:    orderItems,
	}
	if err := s.orderRepo.Create(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Decrement after the insert so a number collision never touches stock.
	for _, item := range orderItems {
		if err := s.productRepo.DecrementStock(tx, item.ProductID, item.Quantity); err != nil {
			tx.Rollback()
			if errors.Is(err, repository.ErrStockConflict) {
				logger.Warn("Lost stock race during checkout", map[string]interface{}{
					"user_id":    userID,
					"product_id": item.ProductID,
				})
				return nil, fmt.Errorf("%w: %s", ErrStockRaceLost, item.ProductName)
			}
			return nil, err
		}
	}

	if err := s.cartRepo.DeleteAllByUser(tx, userID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit order transaction", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	return order, nil
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	return s.orderRepo.FindByUserID(userID)
}

func (s *orderService) GetOrderByNumber(orderNumber string, userID uint, isAdmin bool) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		// Hide the order's existence from non-owners.
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error) {
	return s.orderRepo.FindAll(filter)
}

func (s *orderService) UpdateOrderStatus(orderNumber string, status model.OrderStatus, adminNotes string) (*model.Order, error) {
	logger.Info("Updating order status", map[string]interface{}{
		"order_number": orderNumber,
		"new_status":   status,
	})

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	order, err := s.orderRepo.FindByOrderNumberForUpdate(tx, orderNumber)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !model.CanTransition(order.Status, status) {
		tx.Rollback()
		logger.Warn("Illegal status transition rejected", map[string]interface{}{
			"order_number": orderNumber,
			"from":         order.Status,
			"to":           status,
		})
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalStatusTransition, order.Status, status)
	}

	if err := s.applyTransition(tx, order, status); err != nil {
		tx.Rollback()
		return nil, err
	}
	if adminNotes != "" {
		order.AdminNotes = adminNotes
	}

	if err := s.orderRepo.Save(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info("Order status updated", map[string]interface{}{
		"order_number": orderNumber,
		"status":       status,
	})
	return order, nil
}

// applyTransition mutates the order for an already validated transition and
// performs the transition's side effects inside tx.
func (s *orderService) applyTransition(tx *gorm.DB, order *model.Order, status model.OrderStatus) error {
	now := time.Now()
	order.Status = status
	order.StampStatus(status, now)

	switch status {
	case model.OrderStatusDelivered:
		// A handed-over order is treated as settled regardless of how it
		// was paid; COD collects on the doorstep. For gateway orders this
		// re-writes a payment status the reconciler already owns.
		// TODO: settle COD explicitly instead of piggybacking on delivery.
		order.PaymentStatus = model.PaymentStatusPaid
	case model.OrderStatusCancelled:
		if err := s.restoreStock(tx, order); err != nil {
			return err
		}
	}
	return nil
}

// restoreStock puts every item's quantity back into the catalog. Callers
// guarantee the order was not already cancelled, so this runs at most once
// per order.
func (s *orderService) restoreStock(tx *gorm.DB, order *model.Order) error {
	for _, item := range order.OrderItems {
		if err := s.productRepo.IncrementStock(tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	logger.Info("Restored stock for cancelled order", map[string]interface{}{
		"order_number": order.OrderNumber,
		"items":        len(order.OrderItems),
	})
	return nil
}

func (s *orderService) UpdatePaymentStatus(orderNumber string, status model.PaymentStatus) (*model.Order, error) {
	logger.Info("Updating payment status", map[string]interface{}{
		"order_number": orderNumber,
		"new_status":   status,
	})

	switch status {
	case model.PaymentStatusPending, model.PaymentStatusPaid, model.PaymentStatusFailed, model.PaymentStatusRefunded:
	default:
		return nil, ErrInvalidPaymentStatus
	}

	order, err := s.orderRepo.FindByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	order.PaymentStatus = status
	if err := s.orderRepo.Save(s.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) CancelOrder(orderNumber string, userID uint, isAdmin bool, reason string) (*model.Order, error) {
	logger.Info("Cancelling order", map[string]interface{}{
		"order_number": orderNumber,
		"user_id":      userID,
		"is_admin":     isAdmin,
	})

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	order, err := s.orderRepo.FindByOrderNumberForUpdate(tx, orderNumber)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !isAdmin && order.UserID != userID {
		tx.Rollback()
		return nil, ErrOrderNotFound
	}

	if !model.CanTransition(order.Status, model.OrderStatusCancelled) {
		tx.Rollback()
		return nil, fmt.Errorf("%w: %s -> cancelled", ErrIllegalStatusTransition, order.Status)
	}
	if !isAdmin && !model.CustomerCanCancel(order.Status) {
		tx.Rollback()
		logger.Warn("Customer cancel rejected by status", map[string]interface{}{
			"order_number": orderNumber,
			"status":       order.Status,
		})
		return nil, ErrCancelNotAllowed
	}

	if err := s.applyTransition(tx, order, model.OrderStatusCancelled); err != nil {
		tx.Rollback()
		return nil, err
	}
	if reason != "" {
		if order.AdminNotes != "" {
			order.AdminNotes += "\n"
		}
		order.AdminNotes += "Cancelled: " + reason
	}

	if err := s.orderRepo.Save(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info("Order cancelled", map[string]interface{}{
		"order_number": orderNumber,
	})
	return order, nil
}

func (s *orderService) ExpireStaleOrders(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	stale, err := s.orderRepo.FindStaleUnpaid(model.PaymentMethodVnpay, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, order := range stale {
		if _, err := s.CancelOrder(order.OrderNumber, 0, true, "payment window expired"); err != nil {
			logger.Error("Failed to expire stale order", err, map[string]interface{}{
				"order_number": order.OrderNumber,
			})
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		logger.Info("Expired stale unpaid orders", map[string]interface{}{
			"count": cancelled,
		})
	}
	return cancelled, nil
}

func (s *orderService) Stats() (*repository.OrderStats, error) {
	return s.orderRepo.Stats()
}

// exportHeader is the column layout of the admin order export.
var exportHeader = []string{
	"Order Number", "Date", "Customer", "Phone", "City",
	"Status", "Payment Method", "Payment Status", "Items", "Total Amount",
}

func (s *orderService) ExportOrders(filter repository.OrderFilter) (*excelize.File, error) {
	orders, _, err := s.orderRepo.FindAll(filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Orders"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	for row, order := range orders {
		itemCount := 0
		for _, item := range order.OrderItems {
			itemCount += item.Quantity
		}
		values := []interface{}{
			order.OrderNumber,
			order.OrderDate.Format("2006-01-02 15:04"),
			order.CustomerInfo.FullName,
			order.CustomerInfo.Phone,
			order.CustomerInfo.City,
			string(order.Status),
			string(order.PaymentMethod),
			string(order.PaymentStatus),
			itemCount,
			order.TotalAmount,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	logger.Info("Exported orders to spreadsheet", map[string]interface{}{
		"count": len(orders),
	})
	return f, nil
}
