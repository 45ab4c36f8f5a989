package controller

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartshop/smartshop-backend/internal/app/model"
)

func checkoutPayload() map[string]interface{} {
	return map[string]interface{}{
		"customer_info": map[string]interface{}{
			"full_name": "Test Customer",
			"phone":     "0900000000",
			"address":   "1 Test Street",
			"city":      "Hanoi",
			"notes":     "Leave at the front desk",
		},
		"payment_method": "cod",
	}
}

func TestOrderController_CreateOrder_Success(t *testing.T) {
	env := setupControllerTest(t)
	env.fillCart(t, 2)

	w := env.do(http.MethodPost, "/orders", checkoutPayload(), env.customer)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	order := body["order"].(map[string]interface{})
	expectedPrefix := "DH" + time.Now().Format("20060102")
	assert.Equal(t, expectedPrefix+"001", order["order_number"])
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, float64(500000), order["total_amount"])
	info := order["customer_info"].(map[string]interface{})
	assert.Equal(t, "Leave at the front desk", info["notes"])
}

func TestOrderController_CreateOrder_EmptyCart(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(http.MethodPost, "/orders", checkoutPayload(), env.customer)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "CART_EMPTY", body["error"])
}

func TestOrderController_CreateOrder_InvalidPaymentMethod(t *testing.T) {
	env := setupControllerTest(t)
	env.fillCart(t, 1)

	payload := checkoutPayload()
	payload["payment_method"] = "paypal"
	w := env.do(http.MethodPost, "/orders", payload, env.customer)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "PAYMENT_INVALID_METHOD", body["error"])
}

func TestOrderController_CreateOrder_MissingCustomerInfo(t *testing.T) {
	env := setupControllerTest(t)
	env.fillCart(t, 1)

	payload := checkoutPayload()
	payload["customer_info"] = map[string]interface{}{"full_name": "No Address"}
	w := env.do(http.MethodPost, "/orders", payload, env.customer)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderController_CreateOrder_Unauthenticated(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(http.MethodPost, "/orders", checkoutPayload(), nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderController_GetOrders_OwnOnly(t *testing.T) {
	env := setupControllerTest(t)
	env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodGet, "/orders", nil, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["total"])

	w = env.do(http.MethodGet, "/orders", nil, env.admin)
	body = decodeBody(t, w)
	assert.Equal(t, float64(0), body["total"])
}

func TestOrderController_GetOrderByNumber(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodGet, "/orders/"+order.OrderNumber, nil, env.customer)
	assert.Equal(t, http.StatusOK, w.Code)

	// Admin sees any order
	w = env.do(http.MethodGet, "/orders/"+order.OrderNumber, nil, env.admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/orders/DH20200101999", nil, env.customer)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderController_GetOrderByNumber_StrangerSeesNotFound(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	stranger := &model.User{
		Email:        fmt.Sprintf("stranger-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "hash",
		Name:         "Stranger",
		Role:         model.RoleCustomer,
	}
	require.NoError(t, env.db.Create(stranger).Error)

	w := env.do(http.MethodGet, "/orders/"+order.OrderNumber, nil, stranger)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderController_UpdateStatus(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodPut, "/orders/"+order.OrderNumber+"/status",
		map[string]interface{}{"status": "confirmed"}, env.admin)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "confirmed", body["order"].(map[string]interface{})["status"])
}

func TestOrderController_UpdateStatus_IllegalTransition(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodPut, "/orders/"+order.OrderNumber+"/status",
		map[string]interface{}{"status": "shipping"}, env.admin)

	assert.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ORDER_INVALID_TRANSITION", body["error"])
}

func TestOrderController_UpdatePaymentStatus(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodPut, "/orders/"+order.OrderNumber+"/payment",
		map[string]interface{}{"payment_status": "paid"}, env.admin)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "paid", body["order"].(map[string]interface{})["payment_status"])

	w = env.do(http.MethodPut, "/orders/"+order.OrderNumber+"/payment",
		map[string]interface{}{"payment_status": "gone"}, env.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderController_CancelOrder(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodPost, "/orders/"+order.OrderNumber+"/cancel",
		map[string]interface{}{"reason": "changed my mind"}, env.customer)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "cancelled", body["order"].(map[string]interface{})["status"])

	// Stock went back
	var product model.Product
	require.NoError(t, env.db.First(&product, env.product.ID).Error)
	assert.Equal(t, 10, product.Stock)
}

func TestOrderController_CancelOrder_CustomerBlockedAfterProcessing(t *testing.T) {
	env := setupControllerTest(t)
	order := env.placeOrder(t, model.PaymentMethodCOD)

	_, err := env.orders.UpdateOrderStatus(order.OrderNumber, model.OrderStatusConfirmed, "")
	require.NoError(t, err)
	_, err = env.orders.UpdateOrderStatus(order.OrderNumber, model.OrderStatusProcessing, "")
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/orders/"+order.OrderNumber+"/cancel",
		map[string]interface{}{"reason": "too late"}, env.customer)

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ORDER_CANCEL_FORBIDDEN", body["error"])
}

func TestOrderController_AdminList(t *testing.T) {
	env := setupControllerTest(t)
	env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodGet, "/admin/orders?status=pending", nil, env.admin)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["total"])

	w = env.do(http.MethodGet, "/admin/orders?status=cancelled", nil, env.admin)
	body = decodeBody(t, w)
	assert.Equal(t, float64(0), body["total"])
}

func TestOrderController_AdminStats(t *testing.T) {
	env := setupControllerTest(t)
	env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodGet, "/admin/orders/stats", nil, env.admin)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_orders"])
}

func TestOrderController_AdminExport(t *testing.T) {
	env := setupControllerTest(t)
	env.placeOrder(t, model.PaymentMethodCOD)

	w := env.do(http.MethodGet, "/admin/orders/export", nil, env.admin)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}
