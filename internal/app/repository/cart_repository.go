package repository

import (
	"errors"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	ListByUser(userID uint) ([]model.CartItem, error)
	FindByID(id uint) (*model.CartItem, error)
	FindByUserAndProduct(userID, productID uint) (*model.CartItem, error)
	Create(item *model.CartItem) error
	Update(item *model.CartItem) error
	Delete(id uint) error
	// DeleteAllByUser clears the user's cart inside tx so checkout can
	// empty the cart atomically with order creation.
	DeleteAllByUser(tx *gorm.DB, userID uint) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) ListByUser(userID uint) ([]model.CartItem, error) {
	logger.Debug("Listing cart items for user", map[string]interface{}{
		"user_id": userID,
	})

	var items []model.CartItem
	if err := r.db.Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		logger.Error("Failed to list cart items for user", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	return items, nil
}

func (r *cartRepository) FindByID(id uint) (*model.CartItem, error) {
	logger.Debug("Finding cart item by ID in database", map[string]interface{}{
		"cart_item_id": id,
	})

	var item model.CartItem
	if err := r.db.Preload("Product").First(&item, id).Error; err != nil {
		logger.Error("Failed to find cart item by ID in database", err, map[string]interface{}{
			"cart_item_id": id,
		})
		return nil, err
	}

	return &item, nil
}

func (r *cartRepository) FindByUserAndProduct(userID, productID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find cart item by user and product", err, map[string]interface{}{
				"user_id":    userID,
				"product_id": productID,
			})
		}
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) Create(item *model.CartItem) error {
	logger.Debug("Creating cart item in database", map[string]interface{}{
		"user_id":    item.UserID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})

	if err := r.db.Create(item).Error; err != nil {
		logger.Error("Failed to create cart item in database", err, map[string]interface{}{
			"user_id":    item.UserID,
			"product_id": item.ProductID,
		})
		return err
	}

	return nil
}

func (r *cartRepository) Update(item *model.CartItem) error {
	logger.Debug("Updating cart item in database", map[string]interface{}{
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})

	if err := r.db.Save(item).Error; err != nil {
		logger.Error("Failed to update cart item in database", err, map[string]interface{}{
			"cart_item_id": item.ID,
		})
		return err
	}

	return nil
}

func (r *cartRepository) Delete(id uint) error {
	logger.Debug("Deleting cart item from database", map[string]interface{}{
		"cart_item_id": id,
	})

	if err := r.db.Delete(&model.CartItem{}, id).Error; err != nil {
		logger.Error("Failed to delete cart item from database", err, map[string]interface{}{
			"cart_item_id": id,
		})
		return err
	}

	return nil
}

func (r *cartRepository) DeleteAllByUser(tx *gorm.DB, userID uint) error {
	logger.Debug("Clearing cart for user", map[string]interface{}{
		"user_id": userID,
	})

	if err := tx.Where("user_id = ?", userID).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to clear cart for user", err, map[string]interface{}{
			"user_id": userID,
		})
		return err
	}

	return nil
}
