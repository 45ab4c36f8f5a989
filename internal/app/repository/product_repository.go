package repository

import (
	"errors"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	// ErrStockConflict is returned when a stock decrement loses the race:
	// the conditional update matched no row because stock fell below the
	// requested quantity (or the product vanished) between read and write.
	ErrStockConflict = errors.New("stock changed concurrently")
)

type ProductFilter struct {
	Category   string
	Brand      string
	Search     string
	ActiveOnly bool
	Page       int
	Limit      int
}

type ProductRepository interface {
	Create(product *model.Product) error
	// BulkCreate inserts products in batches, used by the catalog importer.
	BulkCreate(products []model.Product, batchSize int) error
	Update(product *model.Product) error
	FindByID(id uint) (*model.Product, error)
	FindByIDs(ids []uint) ([]model.Product, error)
	FindAll(filter ProductFilter) ([]model.Product, int64, error)
	// DecrementStock conditionally subtracts quantity from the product's
	// stock inside tx. It only succeeds when enough stock remains, so two
	// concurrent checkouts cannot both take the last unit.
	DecrementStock(tx *gorm.DB, productID uint, quantity int) error
	// IncrementStock adds quantity back, used when an order is cancelled.
	IncrementStock(tx *gorm.DB, productID uint, quantity int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name": product.Name,
		"sku":  product.SKU,
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
			"sku":  product.SKU,
		})
		return err
	}

	return nil
}

func (r *productRepository) BulkCreate(products []model.Product, batchSize int) error {
	if len(products) == 0 {
		return nil
	}

	if err := r.db.CreateInBatches(products, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create products", err, map[string]interface{}{
			"count": len(products),
		})
		return err
	}

	return nil
}

func (r *productRepository) Update(product *model.Product) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
	})

	if err := r.db.Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}

	return nil
}

func (r *productRepository) FindByID(id uint) (*model.Product, error) {
	logger.Debug("Finding product by ID in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	if err := r.db.First(&product, id).Error; err != nil {
		logger.Error("Failed to find product by ID in database", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}

	return &product, nil
}

func (r *productRepository) FindByIDs(ids []uint) ([]model.Product, error) {
	logger.Debug("Finding products by IDs in database", map[string]interface{}{
		"count": len(ids),
	})

	var products []model.Product
	if err := r.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		logger.Error("Failed to find products by IDs in database", err, map[string]interface{}{
			"count": len(ids),
		})
		return nil, err
	}

	return products, nil
}

func (r *productRepository) FindAll(filter ProductFilter) ([]model.Product, int64, error) {
	logger.Debug("Finding products", map[string]interface{}{
		"category": filter.Category,
		"brand":    filter.Brand,
		"search":   filter.Search,
	})

	query := r.db.Model(&model.Product{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count products in database", err)
		return nil, 0, err
	}

	if filter.Limit > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.Limit
		}
		query = query.Offset(offset).Limit(filter.Limit)
	}

	var products []model.Product
	if err := query.Order("created_at DESC").Find(&products).Error; err != nil {
		logger.Error("Failed to find products in database", err)
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) DecrementStock(tx *gorm.DB, productID uint, quantity int) error {
	logger.Debug("Decrementing product stock", map[string]interface{}{
		"product_id": productID,
		"quantity":   quantity,
	})

	result := tx.Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		logger.Error("Failed to decrement product stock", result.Error, map[string]interface{}{
			"product_id": productID,
			"quantity":   quantity,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		logger.Warn("Stock decrement matched no row", map[string]interface{}{
			"product_id": productID,
			"quantity":   quantity,
		})
		return ErrStockConflict
	}

	return nil
}

func (r *productRepository) IncrementStock(tx *gorm.DB, productID uint, quantity int) error {
	logger.Debug("Incrementing product stock", map[string]interface{}{
		"product_id": productID,
		"quantity":   quantity,
	})

	if err := tx.Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", quantity)).Error; err != nil {
		logger.Error("Failed to increment product stock", err, map[string]interface{}{
			"product_id": productID,
			"quantity":   quantity,
		})
		return err
	}

	return nil
}
