package service

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/payment/vnpay"
	"gorm.io/gorm"
)

var (
	ErrOrderAlreadyPaid      = errors.New("order is already paid")
	ErrOrderCancelled        = errors.New("order has been cancelled")
	ErrPaymentMethodMismatch = errors.New("order is not a gateway payment")
	ErrInvalidSignature      = vnpay.ErrInvalidSignature
)

// Reconciliation channels. Every gateway event funnels through the same
// writer no matter which door it came in.
const (
	ChannelReturn = "return"
	ChannelIPN    = "ipn"
	ChannelManual = "manual"
)

// PaymentURLResult is the outcome of creating a hosted-payment URL.
type PaymentURLResult struct {
	Success     bool    `json:"success"`
	PaymentURL  string  `json:"payment_url,omitempty"`
	OrderNumber string  `json:"order_number"`
	Amount      float64 `json:"amount"`
	Message     string  `json:"message"`
}

// PaymentInfo is the user-facing view of one gateway event.
type PaymentInfo struct {
	OrderNumber   string     `json:"order_number"`
	Amount        float64    `json:"amount"`
	TransactionNo string     `json:"transaction_no,omitempty"`
	BankCode      string     `json:"bank_code,omitempty"`
	CardType      string     `json:"card_type,omitempty"`
	PayDate       *time.Time `json:"pay_date,omitempty"`
	ResponseCode  string     `json:"response_code"`
	Message       string     `json:"message"`
}

// ReconcileResult reports what a gateway event did to an order.
type ReconcileResult struct {
	Order   *model.Order `json:"order"`
	Success bool         `json:"success"`
	Info    PaymentInfo  `json:"payment_info"`
}

type PaymentService interface {
	// CreatePaymentURL builds a signed redirect URL for an unpaid gateway
	// order and records it on the order.
	CreatePaymentURL(orderNumber string, userID uint, isAdmin bool, bankCode, clientIP string) (*PaymentURLResult, error)
	// HandleReturn processes the customer's redirect back from the gateway.
	HandleReturn(params url.Values) (*ReconcileResult, error)
	// HandleIPN processes the gateway's server-to-server notification. It
	// never returns an error: the gateway only understands ack codes.
	HandleIPN(params url.Values) vnpay.IPNResponse
	// CheckPayment reconciles from gateway params supplied by an
	// authenticated caller who must own the order (or be an admin).
	CheckPayment(params url.Values, userID uint, isAdmin bool) (*ReconcileResult, error)
	Banks() []vnpay.Bank
}

type paymentService struct {
	orderRepo repository.OrderRepository
	client    *vnpay.Client
	db        *gorm.DB
}

func NewPaymentService(orderRepo repository.OrderRepository, client *vnpay.Client, db *gorm.DB) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		client:    client,
		db:        db,
	}
}

func (s *paymentService) CreatePaymentURL(orderNumber string, userID uint, isAdmin bool, bankCode, clientIP string) (*PaymentURLResult, error) {
	logger.Info("Creating payment URL", map[string]interface{}{
		"order_number": orderNumber,
		"user_id":      userID,
		"bank_code":    bankCode,
	})

	order, err := s.orderRepo.FindByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != model.PaymentMethodVnpay {
		return nil, ErrPaymentMethodMismatch
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, ErrOrderAlreadyPaid
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}

	orderInfo := fmt.Sprintf("Thanh toan don hang %s", order.OrderNumber)
	paymentURL, err := s.client.BuildPaymentURL(vnpay.PaymentRequest{
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		OrderInfo:   orderInfo,
		BankCode:    bankCode,
		ClientIP:    clientIP,
	})
	if err != nil {
		logger.Error("Failed to build payment URL", err, map[string]interface{}{
			"order_number": orderNumber,
		})
		return nil, err
	}

	now := time.Now()
	order.GatewayData.PaymentURL = paymentURL
	order.GatewayData.OrderInfo = orderInfo
	order.GatewayData.LastChannel = "url"
	order.GatewayData.LastEventAt = &now
	if err := s.orderRepo.Save(s.db, order); err != nil {
		return nil, err
	}

	return &PaymentURLResult{
		Success:     true,
		PaymentURL:  paymentURL,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		Message:     "Payment URL created",
	}, nil
}

func (s *paymentService) HandleReturn(params url.Values) (*ReconcileResult, error) {
	return s.applyGatewayOutcome(ChannelReturn, params)
}

func (s *paymentService) HandleIPN(params url.Values) vnpay.IPNResponse {
	_, err := s.applyGatewayOutcome(ChannelIPN, params)
	switch {
	case err == nil:
		return vnpay.NewIPNResponse(vnpay.IPNCodeSuccess, "Confirm Success")
	case errors.Is(err, ErrInvalidSignature):
		return vnpay.NewIPNResponse(vnpay.IPNCodeInvalidSignature, "Invalid Signature")
	case errors.Is(err, ErrOrderNotFound):
		return vnpay.NewIPNResponse(vnpay.IPNCodeOrderNotFound, "Order Not Found")
	default:
		logger.Error("IPN processing failed", err)
		return vnpay.NewIPNResponse(vnpay.IPNCodeUnknownError, "Unknown Error")
	}
}

func (s *paymentService) CheckPayment(params url.Values, userID uint, isAdmin bool) (*ReconcileResult, error) {
	orderNumber := params.Get("vnp_TxnRef")
	order, err := s.orderRepo.FindByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	return s.applyGatewayOutcome(ChannelManual, params)
}

func (s *paymentService) Banks() []vnpay.Bank {
	return vnpay.Banks()
}

// applyGatewayOutcome is the single writer for gateway events. All three
// channels land here, so replays and out-of-order deliveries converge on the
// same final state: paid is sticky, gateway data only ever accretes, and the
// order is confirmed at most once.
func (s *paymentService) applyGatewayOutcome(channel string, params url.Values) (*ReconcileResult, error) {
	verification := s.client.Verify(params)
	if !verification.ValidSignature {
		logger.Warn("Gateway callback with invalid signature", map[string]interface{}{
			"channel":   channel,
			"order":     params.Get("vnp_TxnRef"),
			"resp_code": verification.ResponseCode,
		})
		return nil, ErrInvalidSignature
	}

	data := vnpay.ExtractCallbackData(params)

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during payment reconciliation, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"order_number": data.OrderNumber,
			})
		}
	}()

	order, err := s.orderRepo.FindByOrderNumberForUpdate(tx, data.OrderNumber)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	now := time.Now()

	if verification.Succeeded {
		if order.PaymentStatus != model.PaymentStatusPaid {
			order.PaymentStatus = model.PaymentStatusPaid
			logger.Info("Payment settled", map[string]interface{}{
				"order_number": order.OrderNumber,
				"channel":      channel,
			})
		}
		// A successful payment confirms a still-pending order. The stamp
		// only lands on the first confirmation.
		if order.Status == model.OrderStatusPending {
			order.Status = model.OrderStatusConfirmed
			order.StampStatus(model.OrderStatusConfirmed, now)
		}
	} else if order.PaymentStatus != model.PaymentStatusPaid {
		// A failure report never downgrades a settled payment; the
		// gateway may replay stale failures after a later success.
		order.PaymentStatus = model.PaymentStatusFailed
		logger.Info("Payment reported failed", map[string]interface{}{
			"order_number": order.OrderNumber,
			"channel":      channel,
			"resp_code":    verification.ResponseCode,
		})
	}

	mergeGatewayData(&order.GatewayData, data)
	switch channel {
	case ChannelIPN:
		order.GatewayData.IPNReceived = true
		if order.GatewayData.IPNReceivedAt == nil {
			order.GatewayData.IPNReceivedAt = &now
		}
	case ChannelReturn:
		order.GatewayData.ReturnURLAccessed = true
		if order.GatewayData.ReturnURLAccessedAt == nil {
			order.GatewayData.ReturnURLAccessedAt = &now
		}
	}
	order.GatewayData.LastChannel = channel
	order.GatewayData.LastEventAt = &now

	if err := s.orderRepo.Save(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &ReconcileResult{
		Order:   order,
		Success: verification.Succeeded,
		Info: PaymentInfo{
			OrderNumber:   order.OrderNumber,
			Amount:        data.Amount,
			TransactionNo: order.GatewayData.TransactionNo,
			BankCode:      order.GatewayData.BankCode,
			CardType:      order.GatewayData.CardType,
			PayDate:       order.GatewayData.PayDate,
			ResponseCode:  verification.ResponseCode,
			Message:       vnpay.ResponseMessage(verification.ResponseCode),
		},
	}, nil
}

// mergeGatewayData copies fresh gateway fields onto the order, skipping empty
// inputs so a sparse callback cannot erase what an earlier one recorded.
func mergeGatewayData(dst *model.GatewayData, src vnpay.CallbackData) {
	if src.TransactionNo != "" {
		dst.TransactionNo = src.TransactionNo
	}
	if src.BankCode != "" {
		dst.BankCode = src.BankCode
	}
	if src.CardType != "" {
		dst.CardType = src.CardType
	}
	if src.PayDate != nil {
		dst.PayDate = src.PayDate
	}
	if src.ResponseCode != "" {
		dst.ResponseCode = src.ResponseCode
	}
	if src.OrderInfo != "" {
		dst.OrderInfo = src.OrderInfo
	}
}
