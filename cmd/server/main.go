package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/controller"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	"github.com/smartshop/smartshop-backend/internal/router"
	"github.com/smartshop/smartshop-backend/internal/scheduler"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/payment/vnpay"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting SmartShop Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Payment gateway client
	vnpayClient, err := vnpay.NewClient(vnpay.Config{
		TmnCode:    cfg.Payment.VNPay.TmnCode,
		HashSecret: cfg.Payment.VNPay.HashSecret,
		BaseURL:    cfg.Payment.VNPay.BaseURL,
		ReturnURL:  cfg.Payment.VNPay.ReturnURL,
		IPNURL:     cfg.Payment.VNPay.IPNURL,
	})
	if err != nil {
		logger.Fatal("Failed to configure payment gateway client", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	productService := service.NewProductService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo, db.GetDB())
	orderService := service.NewOrderService(orderRepo, cartRepo, productRepo, db.GetDB())
	paymentService := service.NewPaymentService(orderRepo, vnpayClient, db.GetDB())

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	orderController := controller.NewOrderController(orderService)
	paymentController := controller.NewPaymentController(paymentService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Unpaid-order expiry job
	expiryScheduler := scheduler.NewOrderExpiryScheduler(
		orderService,
		cfg.Scheduler.OrderExpirySpec,
		cfg.Scheduler.OrderExpiryAfter,
	)
	if err := expiryScheduler.Start(); err != nil {
		logger.Fatal("Failed to start order expiry scheduler", err)
	}
	defer expiryScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		authController,
		productController,
		cartController,
		orderController,
		paymentController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
