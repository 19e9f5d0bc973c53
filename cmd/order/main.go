package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/orderflow-labs/orderflow/internal/middleware"
	notifierRepository "github.com/orderflow-labs/orderflow/internal/notifier/repository"
	"github.com/orderflow-labs/orderflow/internal/order/repository"
	"github.com/orderflow-labs/orderflow/internal/order/service"
	orderHttp "github.com/orderflow-labs/orderflow/internal/order/transport/http"
	orderKafka "github.com/orderflow-labs/orderflow/internal/order/transport/kafka"
	"github.com/orderflow-labs/orderflow/pkg/config"
	"github.com/orderflow-labs/orderflow/pkg/db"
	pkgKafka "github.com/orderflow-labs/orderflow/pkg/kafka"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
	outboxRepository "github.com/orderflow-labs/orderflow/pkg/outbox/repository"
	"github.com/orderflow-labs/orderflow/pkg/outbox/worker"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "order-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level:   "info",
		Env:     cfg.Env,
		Service: "order-service",
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orderRepo := repository.NewOrderRepository(pool, logger)
	notificationRepo := notifierRepository.NewNotificationRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)
	orderService := service.NewOrderService(pool, logger, orderRepo, notificationRepo, outboxRepo)

	kafkaProducer, err := pkgKafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(
		pool,
		outboxRepo,
		kafkaProducer,
		logger,
		registry,
		cfg.Outbox.Interval,
		cfg.Outbox.BatchSize,
	)
	go outboxProcessor.Start(ctx)

	consumer := orderKafka.NewInventoryResultConsumer(cfg.Kafka.Brokers, pool, orderService, logger)
	go consumer.Run(ctx)

	metricsServer := &http.Server{
		Addr:    cfg.Metrics.Port,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		log.Println("Metrics listening on " + cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v\n", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})
	app.Use(otelfiber.Middleware())

	orderHandler := orderHttp.NewOrderHandler(orderService, outboxRepo, outboxProcessor, logger)
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)

	app.Post("/orders", auth, orderHandler.CreateOrder)
	app.Get("/orders/:id", auth, orderHandler.GetOrder)
	app.Patch("/orders/:id/status", auth, orderHandler.UpdateOrderStatus)
	app.Post("/outbox/publish", auth, orderHandler.PublishOutbox)
	app.Get("/outbox/events", auth, orderHandler.ListOutboxEvents)

	go func() {
		log.Println("Order service listening on " + cfg.HTTP.Port + " 🔥")
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down order service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v\n", err)
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
