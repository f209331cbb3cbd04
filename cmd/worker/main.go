package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "payment-worker")

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.PaymentDB.Dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	// Initialize secondary adapters: Ledger and gateway (implement output ports)
	paymentRepo := database.NewGormPaymentRepository(dbConn.DB)
	gateway := fincode.NewClient(cfg.Fincode)

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.NewRegistry())

	// Initialize core service: hold release processor
	processor := service.NewHoldReleaseProcessor(paymentRepo, gateway, paymentMetrics, logger)

	// Initialize secondary adapter: Messaging (concrete type for worker)
	msgClient, err := messaging.NewRabbitMQClientConcrete(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer msgClient.Close()

	// Start consuming messages
	err = msgClient.ConsumeHoldReleases(func(msg messaging.HoldReleaseMessage) error {
		return processor.ReleaseHold(context.Background(), msg.LocalOrderRef)
	})
	if err != nil {
		log.Fatalf("Failed to start consuming messages: %v", err)
	}

	log.Println("Hold-release worker started. Press CTRL+C to exit.")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
}
