package model

import (
	"time"

	"gorm.io/gorm"
)

// Product is the catalog entry consulted at checkout. The order engine reads
// price/stock/active and copies the descriptive fields into item snapshots;
// everything else about catalog management lives outside this service.
type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	SKU         string         `gorm:"type:varchar(50);uniqueIndex" json:"sku"`
	Description string         `gorm:"type:text" json:"description"`
	Price       float64        `gorm:"not null" json:"price"`
	Stock       int            `gorm:"default:0" json:"stock"`
	Brand       string         `gorm:"type:varchar(100)" json:"brand"`
	Category    string         `gorm:"type:varchar(100)" json:"category"`
	Images      string         `gorm:"type:text" json:"images"` // JSON array of URLs
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	OrderItems []OrderItem `gorm:"foreignKey:ProductID" json:"-"`
	CartItems  []CartItem  `gorm:"foreignKey:ProductID" json:"-"`
}

func (Product) TableName() string {
	return "products"
}
