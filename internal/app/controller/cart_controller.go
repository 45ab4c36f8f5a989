package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// GetCart returns the caller's cart lines with product details.
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	items, err := ctrl.cartService.GetUserCart(userID)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

// AddToCart adds a product, merging quantity into an existing line.
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid cart data")
		return
	}

	item, err := ctrl.cartService.AddToCart(userID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			apperrors.BadRequest(c, apperrors.CartInvalidQuantity, "Quantity must be at least 1")
		case errors.Is(err, service.ErrProductNotFound):
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
		case errors.Is(err, service.ErrProductInactive):
			apperrors.BadRequest(c, apperrors.ProductInactive, "This product is no longer for sale")
		case errors.Is(err, service.ErrInsufficientStock):
			apperrors.Conflict(c, apperrors.ProductInsufficient, "Not enough stock for the requested quantity")
		default:
			log.Error("Failed to add to cart", err, map[string]interface{}{
				"user_id":    userID,
				"product_id": req.ProductID,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// UpdateCartItem changes the quantity of one cart line.
// PUT /api/v1/cart/items/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid cart data")
		return
	}

	item, err := ctrl.cartService.UpdateCartItem(userID, itemID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			apperrors.BadRequest(c, apperrors.CartInvalidQuantity, "Quantity must be at least 1")
		case errors.Is(err, service.ErrCartItemNotFound):
			apperrors.NotFound(c, apperrors.CartItemNotFound, "Cart item not found")
		case errors.Is(err, service.ErrInsufficientStock):
			apperrors.Conflict(c, apperrors.ProductInsufficient, "Not enough stock for the requested quantity")
		default:
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// RemoveFromCart deletes one cart line.
// DELETE /api/v1/cart/items/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveFromCart(userID, itemID); err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			apperrors.NotFound(c, apperrors.CartItemNotFound, "Cart item not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

// ClearCart empties the caller's cart.
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.cartService.ClearCart(userID); err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// ValidateCart previews whether the cart would survive checkout.
// GET /api/v1/cart/validate
func (ctrl *CartController) ValidateCart(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	validation, err := ctrl.cartService.ValidateCart(userID)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"validation": validation})
}
