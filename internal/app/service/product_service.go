package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

// ProductService is the thin catalog surface. Checkout reads products through
// the repository directly; this service only backs the browse and admin
// management endpoints.
type ProductService interface {
	GetProducts(filter repository.ProductFilter) ([]model.Product, int64, error)
	GetProductByID(id uint) (*model.Product, error)
	CreateProduct(product *model.Product) error
	UpdateProduct(id uint, updates *model.Product) (*model.Product, error)
	DeactivateProduct(id uint) (*model.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{
		productRepo: productRepo,
	}
}

func (s *productService) GetProducts(filter repository.ProductFilter) ([]model.Product, int64, error) {
	return s.productRepo.FindAll(filter)
}

func (s *productService) GetProductByID(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(product *model.Product) error {
	logger.Info("Creating product", map[string]interface{}{
		"name": product.Name,
		"sku":  product.SKU,
	})
	return s.productRepo.Create(product)
}

func (s *productService) UpdateProduct(id uint, updates *model.Product) (*model.Product, error) {
	product, err := s.GetProductByID(id)
	if err != nil {
		return nil, err
	}

	if updates.Name != "" {
		product.Name = updates.Name
	}
	if updates.Description != "" {
		product.Description = updates.Description
	}
	if updates.Price > 0 {
		product.Price = updates.Price
	}
	if updates.Stock >= 0 {
		product.Stock = updates.Stock
	}
	if updates.Brand != "" {
		product.Brand = updates.Brand
	}
	if updates.Category != "" {
		product.Category = updates.Category
	}
	if updates.Images != "" {
		product.Images = updates.Images
	}

	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeactivateProduct hides a product from sale without touching existing
// orders or carts. Cart validation reports it as no longer for sale.
func (s *productService) DeactivateProduct(id uint) (*model.Product, error) {
	product, err := s.GetProductByID(id)
	if err != nil {
		return nil, err
	}

	product.IsActive = false
	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}

	logger.Info("Product deactivated", map[string]interface{}{
		"product_id": id,
	})
	return product, nil
}
