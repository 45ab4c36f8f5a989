package service

import (
	"errors"
	"fmt"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not available for sale")
	ErrInsufficientStock = errors.New("insufficient product stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// CartValidation is the result of checking a cart against the live catalog.
// Errors block checkout; warnings (price drift) do not. Items holds only the
// lines that passed the hard checks, priced at their cart snapshot.
type CartValidation struct {
	Valid    bool             `json:"valid"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`
	Items    []model.CartItem `json:"items"`
	Subtotal float64          `json:"subtotal"`
}

type CartService interface {
	GetUserCart(userID uint) ([]model.CartItem, error)
	AddToCart(userID, productID uint, quantity int) (*model.CartItem, error)
	UpdateCartItem(userID, cartItemID uint, quantity int) (*model.CartItem, error)
	RemoveFromCart(userID, cartItemID uint) error
	ClearCart(userID uint) error
	// ValidateCart re-checks every line against the current catalog without
	// touching any data. Checkout runs the same checks again inside its
	// transaction; this is the read-only preview.
	ValidateCart(userID uint) (*CartValidation, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	db          *gorm.DB
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, db *gorm.DB) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		db:          db,
	}
}

func (s *cartService) GetUserCart(userID uint) ([]model.CartItem, error) {
	return s.cartRepo.ListByUser(userID)
}

func (s *cartService) AddToCart(userID, productID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Adding product to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductInactive
	}

	// Adding the same product again merges quantities into the existing row.
	existing, err := s.cartRepo.FindByUserAndProduct(userID, productID)
	if err == nil {
		existing.Quantity += quantity
		if existing.Quantity > product.Stock {
			return nil, ErrInsufficientStock
		}
		if err := s.cartRepo.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if quantity > product.Stock {
		return nil, ErrInsufficientStock
	}

	item := &model.CartItem{
		UserID:      userID,
		ProductID:   productID,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		ProductName: product.Name,
	}
	if err := s.cartRepo.Create(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) UpdateCartItem(userID, cartItemID uint, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.cartRepo.FindByID(cartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	if item.UserID != userID {
		logger.Warn("Cart item update rejected: wrong owner", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": cartItemID,
		})
		return nil, ErrCartItemNotFound
	}

	product, err := s.productRepo.FindByID(item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if quantity > product.Stock {
		return nil, ErrInsufficientStock
	}

	item.Quantity = quantity
	if err := s.cartRepo.Update(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) RemoveFromCart(userID, cartItemID uint) error {
	item, err := s.cartRepo.FindByID(cartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartItemNotFound
		}
		return err
	}
	if item.UserID != userID {
		return ErrCartItemNotFound
	}

	return s.cartRepo.Delete(cartItemID)
}

func (s *cartService) ClearCart(userID uint) error {
	logger.Info("Clearing cart", map[string]interface{}{
		"user_id": userID,
	})
	return s.cartRepo.DeleteAllByUser(s.db, userID)
}

func (s *cartService) ValidateCart(userID uint) (*CartValidation, error) {
	items, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	result := &CartValidation{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
		Items:    []model.CartItem{},
	}

	if len(items) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "cart is empty")
		return result, nil
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s is no longer available", item.ProductName))
			continue
		}
		if !product.IsActive {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s is no longer for sale", product.Name))
			continue
		}
		if product.Stock < item.Quantity {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s has only %d in stock (requested %d)", product.Name, product.Stock, item.Quantity))
			continue
		}
		if product.Price != item.UnitPrice {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s price changed from %.0f to %.0f", product.Name, item.UnitPrice, product.Price))
		}
		// Checkout bills the cart snapshot, so the preview does too.
		result.Items = append(result.Items, item)
		result.Subtotal += float64(item.Quantity) * item.UnitPrice
	}

	logger.Debug("Cart validated", map[string]interface{}{
		"user_id":  userID,
		"valid":    result.Valid,
		"errors":   len(result.Errors),
		"warnings": len(result.Warnings),
	})
	return result, nil
}
