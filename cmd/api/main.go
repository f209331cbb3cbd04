package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httphandler "github.com/toilaloc/research-fincode-payment/internal/adapter/primary/http"
	"github.com/toilaloc/research-fincode-payment/internal/adapter/secondary/database"
	"github.com/toilaloc/research-fincode-payment/internal/adapter/secondary/gateway/fincode"
	"github.com/toilaloc/research-fincode-payment/internal/adapter/secondary/messaging"
	"github.com/toilaloc/research-fincode-payment/internal/config"
	"github.com/toilaloc/research-fincode-payment/internal/constant/model/db"
	"github.com/toilaloc/research-fincode-payment/internal/core/service"
	"github.com/toilaloc/research-fincode-payment/internal/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "payment-api")

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.PaymentDB.Dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	// Initialize secondary adapters: Ledgers, gateway and messaging (implement output ports)
	paymentRepo := database.NewGormPaymentRepository(dbConn.DB)
	refundRepo := database.NewGormRefundRepository(dbConn.DB)
	gateway := fincode.NewClient(cfg.Fincode)
	holdQueue, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer holdQueue.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	// Initialize core service (implements input port)
	paymentService := service.NewPaymentOrchestrator(
		paymentRepo,
		refundRepo,
		gateway,
		holdQueue,
		paymentMetrics,
		logger,
		cfg.Payments,
	)

	// Initialize primary adapter: HTTP handler (uses input port)
	paymentHandler := httphandler.NewPaymentHandler(paymentService)

	// Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	api := e.Group("/api/v1")
	api.POST("/payments", paymentHandler.RegisterPayment)
	api.GET("/payments/:ref", paymentHandler.GetPayment)
	api.POST("/payments/:ref/authorize", paymentHandler.ConfirmAuthorization)
	api.POST("/payments/:ref/authorize/fail", paymentHandler.FailAuthorization)
	api.POST("/payments/:ref/capture", paymentHandler.CapturePayment)
	api.POST("/payments/:ref/cancel", paymentHandler.CancelPayment)
	api.POST("/payments/:ref/refunds", paymentHandler.RefundPayment)

	// Health check and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port)
	log.Printf("Starting API server on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
