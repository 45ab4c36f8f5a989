package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type CustomerInfoRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address" binding:"required"`
	City     string `json:"city" binding:"required"`
	Notes    string `json:"notes"`
}

type CreateOrderRequest struct {
	CustomerInfo  CustomerInfoRequest `json:"customer_info" binding:"required"`
	PaymentMethod string              `json:"payment_method" binding:"required"`
	CustomerNotes string              `json:"customer_notes"`
}

type UpdateOrderStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CreateOrder places an order from the caller's cart.
// POST /api/v1/orders
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order payload", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid order data")
		return
	}

	input := service.CreateOrderInput{
		CustomerInfo: model.CustomerInfo{
			FullName: req.CustomerInfo.FullName,
			Phone:    req.CustomerInfo.Phone,
			Address:  req.CustomerInfo.Address,
			City:     req.CustomerInfo.City,
			Notes:    req.CustomerInfo.Notes,
		},
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		CustomerNotes: req.CustomerNotes,
	}

	order, err := ctrl.orderService.CreateOrderFromCart(userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPaymentMethod):
			apperrors.BadRequest(c, apperrors.PaymentInvalidMethod, "Unsupported payment method")
		case errors.Is(err, service.ErrEmptyCart):
			apperrors.BadRequest(c, apperrors.CartEmpty, "Your cart is empty")
		case errors.Is(err, service.ErrCartInvalid):
			apperrors.BadRequest(c, apperrors.CartValidationFail, err.Error())
		case errors.Is(err, service.ErrStockRaceLost):
			apperrors.Conflict(c, apperrors.ProductInsufficient, "A product in your cart was just bought out, please review your cart")
		case errors.Is(err, service.ErrOrderNumberExhausted):
			apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.OrderNumberExhausted, "Unable to allocate an order number, please try again")
		default:
			log.Error("Failed to create order", err, map[string]interface{}{
				"user_id": userID,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GetOrders lists the caller's own orders.
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(userID)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  len(orders),
	})
}

// GetOrderByNumber returns one order. Customers only see their own.
// GET /api/v1/orders/:number
func (ctrl *OrderController) GetOrderByNumber(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	order, err := ctrl.orderService.GetOrderByNumber(c.Param("number"), userID, middleware.IsAdmin(c))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus moves an order along the fulfillment chain. Admin only.
// PUT /api/v1/admin/orders/:number/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid status data")
		return
	}

	order, err := ctrl.orderService.UpdateOrderStatus(c.Param("number"), model.OrderStatus(req.Status), req.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		case errors.Is(err, service.ErrIllegalStatusTransition):
			apperrors.Conflict(c, apperrors.OrderInvalidTransition, fmt.Sprintf("Order cannot move to status %q", req.Status))
		default:
			log.Error("Failed to update order status", err, map[string]interface{}{
				"order_number": c.Param("number"),
				"status":       req.Status,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdatePaymentStatus overrides an order's payment status. Admin only.
// PUT /api/v1/admin/orders/:number/payment
func (ctrl *OrderController) UpdatePaymentStatus(c *gin.Context) {
	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid payment status data")
		return
	}

	order, err := ctrl.orderService.UpdatePaymentStatus(c.Param("number"), model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		case errors.Is(err, service.ErrInvalidPaymentStatus):
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Unknown payment status")
		default:
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels an order and restores its stock.
// POST /api/v1/orders/:number/cancel
func (ctrl *OrderController) CancelOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid cancel data")
		return
	}

	order, err := ctrl.orderService.CancelOrder(c.Param("number"), userID, middleware.IsAdmin(c), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		case errors.Is(err, service.ErrCancelNotAllowed):
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.OrderCancelForbidden, "This order can no longer be cancelled by you, contact support")
		case errors.Is(err, service.ErrIllegalStatusTransition):
			apperrors.Conflict(c, apperrors.OrderInvalidTransition, "This order can no longer be cancelled")
		default:
			log.Error("Failed to cancel order", err, map[string]interface{}{
				"order_number": c.Param("number"),
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListOrders lists all orders with filters. Admin only.
// GET /api/v1/admin/orders
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	filter := orderFilterFromQuery(c)

	orders, total, err := ctrl.orderService.ListOrders(filter)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

// GetStats returns aggregate order counts and revenue. Admin only.
// GET /api/v1/admin/orders/stats
func (ctrl *OrderController) GetStats(c *gin.Context) {
	stats, err := ctrl.orderService.Stats()
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// ExportOrders streams the filtered order list as an xlsx workbook. Admin only.
// GET /api/v1/admin/orders/export
func (ctrl *OrderController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter := orderFilterFromQuery(c)
	filter.Page = 0
	filter.Limit = 0

	f, err := ctrl.orderService.ExportOrders(filter)
	if err != nil {
		log.Error("Failed to export orders", err, nil)
		apperrors.InternalError(c, "")
		return
	}

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(c.Writer); err != nil {
		log.Error("Failed to stream order export", err, nil)
	}
}

func orderFilterFromQuery(c *gin.Context) repository.OrderFilter {
	filter := repository.OrderFilter{
		Status:        model.OrderStatus(c.Query("status")),
		PaymentStatus: model.PaymentStatus(c.Query("payment_status")),
		PaymentMethod: model.PaymentMethod(c.Query("payment_method")),
		Page:          1,
		Limit:         20,
	}

	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		filter.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}
	if v, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil {
		filter.UserID = uint(v)
	}
	if v, err := time.Parse("2006-01-02", c.Query("date_from")); err == nil {
		filter.DateFrom = &v
	}
	if v, err := time.Parse("2006-01-02", c.Query("date_to")); err == nil {
		end := v.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}

	return filter
}
