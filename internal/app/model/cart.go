package model

import (
	"time"
)

// CartItem holds one product in a user's cart. UnitPrice and ProductName are
// snapshots taken when the item was added; checkout compares UnitPrice against
// the current catalog price to surface drift.
type CartItem struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	UserID      uint    `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID   uint    `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity    int     `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"not null" json:"unit_price"`
	ProductName string  `gorm:"not null" json:"product_name"`
	// Cart rows are hard-deleted: a soft delete would collide with the
	// (user, product) unique index when the same product is re-added.
	CreatedAt time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User    User    `gorm:"foreignKey:UserID" json:"-"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// TotalPrice is the line total at the snapshot price.
func (c *CartItem) TotalPrice() float64 {
	return float64(c.Quantity) * c.UnitPrice
}
