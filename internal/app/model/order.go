package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string
type PaymentStatus string
type PaymentMethod string

const (
	OrderStatusPending    OrderStatus = "pending"    // placed, awaiting confirmation
	OrderStatusConfirmed  OrderStatus = "confirmed"  // confirmed by payment or staff
	OrderStatusProcessing OrderStatus = "processing" // being prepared
	OrderStatusShipping   OrderStatus = "shipping"   // handed to carrier
	OrderStatusDelivered  OrderStatus = "delivered"  // terminal
	OrderStatusCancelled  OrderStatus = "cancelled"  // terminal

	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"

	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodVnpay        PaymentMethod = "vnpay"
)

// orderTransitions lists the legal forward edges of the order lifecycle.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:   {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether an administrator may move an order from one
// status to another. Terminal states have no outgoing edges.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerCanCancel reports whether the order owner may still cancel.
// Once an order is processing the warehouse has picked it; only staff can
// cancel from there.
func CustomerCanCancel(status OrderStatus) bool {
	return status == OrderStatusPending || status == OrderStatusConfirmed
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status OrderStatus) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// CustomerInfo is the shipping contact captured at checkout.
type CustomerInfo struct {
	FullName string `gorm:"column:customer_full_name;not null" json:"full_name"`
	Phone    string `gorm:"column:customer_phone;not null" json:"phone"`
	Address  string `gorm:"column:customer_address;not null" json:"address"`
	City     string `gorm:"column:customer_city;not null" json:"city"`
	Notes    string `gorm:"column:customer_info_notes;type:text" json:"notes,omitempty"`
}

// GatewayData holds everything VNPay has told us about an order so far.
// It is merge-only: reconciliation may fill or overwrite fields with fresher
// gateway data but never blanks a field an earlier callback populated.
type GatewayData struct {
	PaymentURL          string     `gorm:"type:text" json:"payment_url,omitempty"`
	OrderInfo           string     `json:"order_info,omitempty"`
	TransactionNo       string     `gorm:"index" json:"transaction_no,omitempty"`
	BankCode            string     `json:"bank_code,omitempty"`
	CardType            string     `json:"card_type,omitempty"`
	PayDate             *time.Time `json:"pay_date,omitempty"`
	ResponseCode        string     `gorm:"type:varchar(5)" json:"response_code,omitempty"`
	IPNReceived         bool       `json:"ipn_received"`
	IPNReceivedAt       *time.Time `json:"ipn_received_at,omitempty"`
	ReturnURLAccessed   bool       `json:"return_url_accessed"`
	ReturnURLAccessedAt *time.Time `json:"return_url_accessed_at,omitempty"`
	LastChannel         string     `gorm:"type:varchar(20)" json:"last_channel,omitempty"`
	LastEventAt         *time.Time `json:"last_event_at,omitempty"`
}

type Order struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	OrderNumber   string         `gorm:"type:varchar(20);uniqueIndex;not null" json:"order_number"` // DH<yyyymmdd><seq>
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	CustomerInfo  CustomerInfo   `gorm:"embedded" json:"customer_info"`
	Status        OrderStatus    `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaymentMethod PaymentMethod  `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus PaymentStatus  `gorm:"type:varchar(20);default:'pending'" json:"payment_status"`
	Subtotal      float64        `gorm:"not null" json:"subtotal"`
	TotalAmount   float64        `gorm:"not null" json:"total_amount"` // == Subtotal, fixed at creation
	OrderDate     time.Time      `gorm:"not null;index" json:"order_date"`
	ConfirmedAt   *time.Time     `json:"confirmed_at,omitempty"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	ShippedAt     *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	CustomerNotes string         `gorm:"type:text" json:"customer_notes,omitempty"`
	AdminNotes    string         `gorm:"type:text" json:"admin_notes,omitempty"`
	GatewayData   GatewayData    `gorm:"embedded;embeddedPrefix:vnpay_" json:"gateway_data"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	User       User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// statusTimestamp returns the pointer for the timestamp a transition stamps.
func (o *Order) statusTimestamp(status OrderStatus) **time.Time {
	switch status {
	case OrderStatusConfirmed:
		return &o.ConfirmedAt
	case OrderStatusProcessing:
		return &o.ProcessedAt
	case OrderStatusShipping:
		return &o.ShippedAt
	case OrderStatusDelivered:
		return &o.DeliveredAt
	case OrderStatusCancelled:
		return &o.CancelledAt
	}
	return nil
}

// StampStatus sets the timestamp for a newly entered status, once.
// A repeated event for an already stamped status is a no-op so duplicate
// gateway callbacks cannot move timestamps around.
func (o *Order) StampStatus(status OrderStatus, now time.Time) {
	ts := o.statusTimestamp(status)
	if ts != nil && *ts == nil {
		t := now
		*ts = &t
	}
}

// ProductSnapshot is the point-in-time copy of catalog fields embedded into
// an order item. Later catalog edits never alter it.
type ProductSnapshot struct {
	Description string `gorm:"column:snapshot_description;type:text" json:"description,omitempty"`
	Images      string `gorm:"column:snapshot_images;type:text" json:"images,omitempty"`
	Brand       string `gorm:"column:snapshot_brand" json:"brand,omitempty"`
	Category    string `gorm:"column:snapshot_category" json:"category,omitempty"`
}

type OrderItem struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"` // weak ref, product may be deleted later
	ProductName string          `gorm:"not null" json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   float64         `gorm:"not null" json:"unit_price"`
	TotalPrice  float64         `gorm:"not null" json:"total_price"`
	Snapshot    ProductSnapshot `gorm:"embedded" json:"product_snapshot"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
