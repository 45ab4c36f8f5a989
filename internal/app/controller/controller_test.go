package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	"github.com/smartshop/smartshop-backend/pkg/payment/vnpay"
	"github.com/smartshop/smartshop-backend/pkg/util"
)

const controllerTestSecret = "controller-test-hash-secret"

// controllerTestEnv wires the full stack against an in-memory database so
// controller tests exercise real services and repositories.
type controllerTestEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	carts    service.CartService
	orders   service.OrderService
	payments service.PaymentService

	customer *model.User
	admin    *model.User
	product  *model.Product
}

func setupControllerTest(t *testing.T) *controllerTestEnv {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	userRepo := repository.NewUserRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)

	client, err := vnpay.NewClient(vnpay.Config{
		TmnCode:    "TESTSHOP",
		HashSecret: controllerTestSecret,
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:3000/payment/vnpay-return",
	})
	require.NoError(t, err)

	authService := service.NewAuthService(userRepo, "test-jwt-secret", time.Hour, 24*time.Hour)
	productService := service.NewProductService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo, testDB)
	orderService := service.NewOrderService(orderRepo, cartRepo, productRepo, testDB)
	paymentService := service.NewPaymentService(orderRepo, client, testDB)

	env := &controllerTestEnv{
		db:       testDB,
		carts:    cartService,
		orders:   orderService,
		payments: paymentService,
	}

	hash, err := util.HashPassword("password123")
	require.NoError(t, err)

	env.customer = &model.User{
		Email:        fmt.Sprintf("customer-%d@example.com", time.Now().UnixNano()),
		PasswordHash: hash,
		Name:         "Test Customer",
		Role:         model.RoleCustomer,
	}
	require.NoError(t, testDB.Create(env.customer).Error)

	env.admin = &model.User{
		Email:        fmt.Sprintf("admin-%d@example.com", time.Now().UnixNano()),
		PasswordHash: hash,
		Name:         "Test Admin",
		Role:         model.RoleAdmin,
	}
	require.NoError(t, testDB.Create(env.admin).Error)

	env.product = &model.Product{
		Name:     "Wireless Mouse",
		SKU:      "SKU-MOUSE-001",
		Price:    250000,
		Stock:    10,
		IsActive: true,
	}
	require.NoError(t, testDB.Create(env.product).Error)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	env.router = router

	// Test identity middleware: requests carry the caller in headers instead
	// of a JWT, setting the same context keys the real middleware would.
	router.Use(func(c *gin.Context) {
		if idStr := c.GetHeader("X-Test-User-ID"); idStr != "" {
			id, _ := strconv.ParseUint(idStr, 10, 64)
			c.Set(middleware.UserIDKey, uint(id))
			c.Set(middleware.UserEmailKey, c.GetHeader("X-Test-User-Email"))
			c.Set(middleware.UserRoleKey, model.UserRole(c.GetHeader("X-Test-User-Role")))
		}
		c.Next()
	})

	authController := NewAuthController(authService)
	productController := NewProductController(productService)
	cartController := NewCartController(cartService)
	orderController := NewOrderController(orderService)
	paymentController := NewPaymentController(paymentService)

	router.POST("/auth/register", authController.Register)
	router.POST("/auth/login", authController.Login)
	router.GET("/auth/me", authController.Me)
	router.PUT("/auth/me", authController.UpdateProfile)

	router.GET("/products", productController.GetProducts)
	router.GET("/products/:id", productController.GetProductByID)
	router.POST("/admin/products", productController.CreateProduct)
	router.PUT("/admin/products/:id", productController.UpdateProduct)
	router.DELETE("/admin/products/:id", productController.DeactivateProduct)

	router.GET("/cart", cartController.GetCart)
	router.GET("/cart/validate", cartController.ValidateCart)
	router.POST("/cart/items", cartController.AddToCart)
	router.PUT("/cart/items/:id", cartController.UpdateCartItem)
	router.DELETE("/cart/items/:id", cartController.RemoveFromCart)
	router.DELETE("/cart", cartController.ClearCart)

	router.POST("/orders", orderController.CreateOrder)
	router.GET("/orders", orderController.GetOrders)
	router.GET("/orders/:number", orderController.GetOrderByNumber)
	router.POST("/orders/:number/cancel", orderController.CancelOrder)
	router.PUT("/orders/:number/status", orderController.UpdateOrderStatus)
	router.PUT("/orders/:number/payment", orderController.UpdatePaymentStatus)
	router.GET("/admin/orders", orderController.ListOrders)
	router.GET("/admin/orders/stats", orderController.GetStats)
	router.GET("/admin/orders/export", orderController.ExportOrders)

	router.POST("/payments/vnpay/url", paymentController.CreatePaymentURL)
	router.GET("/payments/vnpay/return", paymentController.HandleReturn)
	router.POST("/payments/vnpay/ipn", paymentController.HandleIPN)
	router.POST("/payments/vnpay/check", paymentController.CheckPayment)
	router.GET("/payments/vnpay/banks", paymentController.GetBanks)

	return env
}

// do performs a request, optionally authenticated as the given user. Auth is
// injected through the same context keys the middleware would set so tests
// don't depend on token plumbing.
func (env *controllerTestEnv) do(method, path string, body interface{}, as *model.User) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewBuffer(raw)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")

	if as != nil {
		req.Header.Set("X-Test-User-ID", strconv.FormatUint(uint64(as.ID), 10))
		req.Header.Set("X-Test-User-Email", as.Email)
		req.Header.Set("X-Test-User-Role", string(as.Role))
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// fillCart puts quantity units of the shared product into the customer's cart.
func (env *controllerTestEnv) fillCart(t *testing.T, quantity int) {
	t.Helper()
	_, err := env.carts.AddToCart(env.customer.ID, env.product.ID, quantity)
	require.NoError(t, err)
}

// placeOrder checks out the customer's cart directly through the service.
func (env *controllerTestEnv) placeOrder(t *testing.T, method model.PaymentMethod) *model.Order {
	t.Helper()
	env.fillCart(t, 2)
	order, err := env.orders.CreateOrderFromCart(env.customer.ID, service.CreateOrderInput{
		CustomerInfo: model.CustomerInfo{
			FullName: "Test Customer",
			Phone:    "0900000000",
			Address:  "1 Test Street",
			City:     "Hanoi",
		},
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return order
}
