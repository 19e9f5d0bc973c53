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
	"github.com/orderflow-labs/orderflow/internal/notifier/repository"
	"github.com/orderflow-labs/orderflow/internal/notifier/service"
	notifierHttp "github.com/orderflow-labs/orderflow/internal/notifier/transport/http"
	notifierKafka "github.com/orderflow-labs/orderflow/internal/notifier/transport/kafka"
	"github.com/orderflow-labs/orderflow/internal/notifier/ws"
	"github.com/orderflow-labs/orderflow/pkg/config"
	"github.com/orderflow-labs/orderflow/pkg/db"
	"github.com/orderflow-labs/orderflow/pkg/mylogger"
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

	tp, err := utils.InitTracer(ctx, "notifier-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level:   "info",
		Env:     cfg.Env,
		Service: "notifier-service",
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

	hub := ws.NewHub(logger)

	notificationRepo := repository.NewNotificationRepository(pool, logger)
	notifierService := service.NewNotifierService(logger, notificationRepo, hub)

	consumer := notifierKafka.NewOrderStatusConsumer(cfg.Kafka.Brokers, pool, notifierService, logger)
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

	handler := notifierHttp.NewNotificationHandler(notifierService, hub, logger)
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)

	app.Get("/notifications", auth, handler.ListNotifications)
	app.Patch("/notifications/read/all", auth, handler.MarkAllRead)
	app.Patch("/notifications/:id/read", auth, handler.MarkRead)
	app.Get("/notifications/unread/count", auth, handler.UnreadCount)
	app.Delete("/notifications/:id", auth, handler.DeleteNotification)
	app.Get("/ws/stats", auth, handler.Stats)

	app.Use("/ws", ws.UpgradeMiddleware)
	app.Get("/ws", ws.NewClientHandler(hub, notificationRepo, cfg.Auth.JWTSecret, logger))

	go func() {
		log.Println("Notifier service listening on " + cfg.HTTP.Port + " 🔥")
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down notifier service")

	hub.Close()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v\n", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
