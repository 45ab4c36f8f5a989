package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	SKU         string  `json:"sku" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       int     `json:"stock" binding:"min=0"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Images      string  `json:"images"`
}

type UpdateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       *int    `json:"stock"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Images      string  `json:"images"`
}

// GetProducts lists active products with filters and pagination.
// GET /api/v1/products
func (ctrl *ProductController) GetProducts(c *gin.Context) {
	filter := repository.ProductFilter{
		Category:   c.Query("category"),
		Brand:      c.Query("brand"),
		Search:     c.Query("search"),
		ActiveOnly: true,
		Page:       1,
		Limit:      20,
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		filter.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}

	products, total, err := ctrl.productService.GetProducts(filter)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

// GetProductByID returns one product.
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProductByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.GetProductByID(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// CreateProduct adds a catalog entry. Admin only.
// POST /api/v1/admin/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid product data")
		return
	}

	product := &model.Product{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Brand:       req.Brand,
		Category:    req.Category,
		Images:      req.Images,
		IsActive:    true,
	}

	if err := ctrl.productService.CreateProduct(product); err != nil {
		if apperrors.IsDuplicateKey(err) {
			apperrors.Conflict(c, apperrors.ResourceAlreadyExists, "A product with this SKU already exists")
			return
		}
		log.Error("Failed to create product", err, map[string]interface{}{
			"sku": req.SKU,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct edits a catalog entry. Admin only.
// PUT /api/v1/admin/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid product data")
		return
	}

	updates := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       -1,
		Brand:       req.Brand,
		Category:    req.Category,
		Images:      req.Images,
	}
	if req.Stock != nil {
		updates.Stock = *req.Stock
	}

	product, err := ctrl.productService.UpdateProduct(id, updates)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// DeactivateProduct takes a product off sale. Admin only.
// DELETE /api/v1/admin/products/:id
func (ctrl *ProductController) DeactivateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.DeactivateProduct(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}
