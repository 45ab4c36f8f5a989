package controller

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

type PaymentController struct {
	paymentService service.PaymentService
}

func NewPaymentController(paymentService service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

type CreatePaymentURLRequest struct {
	OrderNumber string `json:"order_number" binding:"required"`
	BankCode    string `json:"bank_code"`
}

// CreatePaymentURL builds a signed gateway redirect URL for an order.
// POST /api/v1/payments/vnpay/url
func (ctrl *PaymentController) CreatePaymentURL(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req CreatePaymentURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid payment request")
		return
	}

	result, err := ctrl.paymentService.CreatePaymentURL(req.OrderNumber, userID, middleware.IsAdmin(c), req.BankCode, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		case errors.Is(err, service.ErrPaymentMethodMismatch):
			apperrors.BadRequest(c, apperrors.PaymentInvalidMethod, "This order is not payable through the gateway")
		case errors.Is(err, service.ErrOrderAlreadyPaid):
			apperrors.Conflict(c, apperrors.OrderAlreadyPaid, "This order has already been paid")
		case errors.Is(err, service.ErrOrderCancelled):
			apperrors.Conflict(c, apperrors.OrderCancelled, "This order has been cancelled")
		default:
			log.Error("Failed to create payment URL", err, map[string]interface{}{
				"order_number": req.OrderNumber,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": result})
}

// HandleReturn processes the browser redirect back from the gateway.
// GET /api/v1/payments/vnpay/return
func (ctrl *PaymentController) HandleReturn(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	result, err := ctrl.paymentService.HandleReturn(c.Request.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			apperrors.BadRequest(c, apperrors.PaymentInvalidSignature, "Payment signature verification failed")
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		default:
			log.Error("Failed to process payment return", err, nil)
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Success,
		"order":   result.Order,
		"payment": result.Info,
	})
}

// HandleIPN processes the gateway's server-to-server notification. The
// response body is the ack contract the gateway expects, always HTTP 200.
// POST /api/v1/payments/vnpay/ipn
func (ctrl *PaymentController) HandleIPN(c *gin.Context) {
	params := c.Request.URL.Query()
	if err := c.Request.ParseForm(); err == nil && len(c.Request.PostForm) > 0 {
		params = c.Request.PostForm
	}

	c.JSON(http.StatusOK, ctrl.paymentService.HandleIPN(params))
}

// CheckPayment reconciles an order from gateway params supplied by the
// authenticated owner, covering callbacks that never reached us.
// POST /api/v1/payments/vnpay/check
func (ctrl *PaymentController) CheckPayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid payment data")
		return
	}

	params := make(url.Values, len(body))
	for k, v := range body {
		params.Set(k, v)
	}

	result, err := ctrl.paymentService.CheckPayment(params, userID, middleware.IsAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			apperrors.BadRequest(c, apperrors.PaymentInvalidSignature, "Payment signature verification failed")
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		default:
			log.Error("Failed to check payment", err, map[string]interface{}{
				"user_id": userID,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Success,
		"order":   result.Order,
		"payment": result.Info,
	})
}

// GetBanks lists the banks supported for gateway payments.
// GET /api/v1/payments/vnpay/banks
func (ctrl *PaymentController) GetBanks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"banks": ctrl.paymentService.Banks()})
}
