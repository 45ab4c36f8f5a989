package router

import (
	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/controller"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

type Router struct {
	authController    *controller.AuthController
	productController *controller.ProductController
	cartController    *controller.CartController
	orderController   *controller.OrderController
	paymentController *controller.PaymentController
	authMiddleware    *middleware.AuthMiddleware
	config            *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	cartController *controller.CartController,
	orderController *controller.OrderController,
	paymentController *controller.PaymentController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:    authController,
		productController: productController,
		cartController:    cartController,
		orderController:   orderController,
		paymentController: paymentController,
		authMiddleware:    authMiddleware,
		config:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "SmartShop API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
			auth.PUT("/me", r.authMiddleware.Authenticate(), r.authController.UpdateProfile)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.GetProducts)
			products.GET("/:id", r.productController.GetProductByID)
		}

		cart := v1.Group("/cart")
		cart.Use(r.authMiddleware.Authenticate())
		{
			cart.GET("", r.cartController.GetCart)
			cart.GET("/validate", r.cartController.ValidateCart)
			cart.POST("/items", r.cartController.AddToCart)
			cart.PUT("/items/:id", r.cartController.UpdateCartItem)
			cart.DELETE("/items/:id", r.cartController.RemoveFromCart)
			cart.DELETE("", r.cartController.ClearCart)
		}

		orders := v1.Group("/orders")
		orders.Use(r.authMiddleware.Authenticate())
		{
			orders.POST("", r.orderController.CreateOrder)
			orders.GET("", r.orderController.GetOrders)
			orders.GET("/:number", r.orderController.GetOrderByNumber)
			orders.POST("/:number/cancel", r.orderController.CancelOrder)

			orders.PUT("/:number/status",
				r.authMiddleware.RequireRole(string(model.RoleAdmin)),
				r.orderController.UpdateOrderStatus,
			)
			orders.PUT("/:number/payment",
				r.authMiddleware.RequireRole(string(model.RoleAdmin)),
				r.orderController.UpdatePaymentStatus,
			)
		}

		payments := v1.Group("/payments/vnpay")
		{
			// Gateway-facing callbacks carry their own HMAC and cannot
			// send an Authorization header.
			payments.GET("/return", r.paymentController.HandleReturn)
			payments.GET("/ipn", r.paymentController.HandleIPN)
			payments.POST("/ipn", r.paymentController.HandleIPN)
			payments.GET("/banks", r.paymentController.GetBanks)

			payments.POST("/url", r.authMiddleware.Authenticate(), r.paymentController.CreatePaymentURL)
			payments.POST("/check", r.authMiddleware.Authenticate(), r.paymentController.CheckPayment)
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireRole(string(model.RoleAdmin)))
		{
			admin.GET("/orders", r.orderController.ListOrders)
			admin.GET("/orders/stats", r.orderController.GetStats)
			admin.GET("/orders/export", r.orderController.ExportOrders)

			admin.POST("/products", r.productController.CreateProduct)
			admin.PUT("/products/:id", r.productController.UpdateProduct)
			admin.DELETE("/products/:id", r.productController.DeactivateProduct)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
