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
	"github.com/orderflow-labs/orderflow/internal/inventory/repository"
	"github.com/orderflow-labs/orderflow/internal/inventory/service"
	inventoryHttp "github.com/orderflow-labs/orderflow/internal/inventory/transport/http"
	inventoryKafka "github.com/orderflow-labs/orderflow/internal/inventory/transport/kafka"
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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "inventory-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level:   "info",
		Env:     cfg.Env,
		Service: "inventory-service",
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

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	productRepo := repository.NewProductRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)
	inventoryService := service.NewInventoryService(pool, logger, productRepo, outboxRepo)
	cachedService := service.NewCachedInventoryService(inventoryService, redisClient, logger)

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

	consumer := inventoryKafka.NewOrderCreatedConsumer(cfg.Kafka.Brokers, pool, cachedService, logger)
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

	handler := inventoryHttp.NewInventoryHandler(cachedService, logger)

	app.Post("/inventory/reserve", handler.Reserve)
	app.Post("/inventory/release", handler.Release)
	app.Post("/inventory/confirm", handler.Confirm)
	app.Post("/products", handler.CreateProduct)
	app.Get("/products/:id", handler.GetProduct)
	app.Patch("/products/:id/stock", handler.AdjustStock)

	go func() {
		log.Println("Inventory service listening on " + cfg.HTTP.Port + " 🔥")
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down inventory service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v\n", err)
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
