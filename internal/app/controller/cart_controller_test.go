package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartshop/smartshop-backend/internal/app/model"
)

func TestCartController_AddAndGet(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(http.MethodPost, "/cart/items",
		map[string]interface{}{"product_id": env.product.ID, "quantity": 2}, env.customer)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/cart", nil, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["total"])
	items := body["items"].([]interface{})
	assert.Equal(t, float64(2), items[0].(map[string]interface{})["quantity"])
}

func TestCartController_AddToCart_Errors(t *testing.T) {
	env := setupControllerTest(t)

	tests := []struct {
		name       string
		payload    map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown product",
			payload:    map[string]interface{}{"product_id": 9999, "quantity": 1},
			wantStatus: http.StatusNotFound,
			wantCode:   "PRODUCT_NOT_FOUND",
		},
		{
			name:       "insufficient stock",
			payload:    map[string]interface{}{"product_id": env.product.ID, "quantity": 100},
			wantStatus: http.StatusConflict,
			wantCode:   "PRODUCT_INSUFFICIENT_STOCK",
		},
		{
			name:       "zero quantity rejected by binding",
			payload:    map[string]interface{}{"product_id": env.product.ID, "quantity": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/cart/items", tt.payload, env.customer)
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestCartController_AddToCart_InactiveProduct(t *testing.T) {
	env := setupControllerTest(t)

	inactive := &model.Product{
		Name:     "Retired Keyboard",
		SKU:      "SKU-RETIRED-001",
		Price:    100000,
		Stock:    5,
		IsActive: false,
	}
	require.NoError(t, env.db.Create(inactive).Error)

	w := env.do(http.MethodPost, "/cart/items",
		map[string]interface{}{"product_id": inactive.ID, "quantity": 1}, env.customer)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "PRODUCT_INACTIVE", body["error"])
}

func TestCartController_UpdateCartItem(t *testing.T) {
	env := setupControllerTest(t)

	item, err := env.carts.AddToCart(env.customer.ID, env.product.ID, 1)
	require.NoError(t, err)

	w := env.do(http.MethodPut, fmt.Sprintf("/cart/items/%d", item.ID),
		map[string]interface{}{"quantity": 3}, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["item"].(map[string]interface{})["quantity"])

	// Another user cannot touch it
	w = env.do(http.MethodPut, fmt.Sprintf("/cart/items/%d", item.ID),
		map[string]interface{}{"quantity": 2}, env.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartController_RemoveAndClear(t *testing.T) {
	env := setupControllerTest(t)

	item, err := env.carts.AddToCart(env.customer.ID, env.product.ID, 1)
	require.NoError(t, err)

	w := env.do(http.MethodDelete, fmt.Sprintf("/cart/items/%d", item.ID), nil, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, fmt.Sprintf("/cart/items/%d", item.ID), nil, env.customer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.fillCart(t, 2)
	w = env.do(http.MethodDelete, "/cart", nil, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/cart", nil, env.customer)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["total"])
}

func TestCartController_ValidateCart(t *testing.T) {
	env := setupControllerTest(t)
	env.fillCart(t, 2)

	w := env.do(http.MethodGet, "/cart/validate", nil, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	validation := body["validation"].(map[string]interface{})
	assert.Equal(t, true, validation["valid"])
	assert.Equal(t, float64(500000), validation["subtotal"])

	// Deplete stock behind the cart's back
	require.NoError(t, env.db.Model(&model.Product{}).
		Where("id = ?", env.product.ID).Update("stock", 1).Error)

	w = env.do(http.MethodGet, "/cart/validate", nil, env.customer)
	validation = decodeBody(t, w)["validation"].(map[string]interface{})
	assert.Equal(t, false, validation["valid"])
	assert.NotEmpty(t, validation["errors"])
}
