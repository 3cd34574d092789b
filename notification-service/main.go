package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agromart/notification-service/config"
	"agromart/notification-service/handlers"
	"agromart/notification-service/hub"
	"agromart/notification-service/inbox"
	"agromart/notification-service/kafka"
	"agromart/notification-service/notifier"
	pkgkafka "agromart/pkg/kafka"
	"agromart/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracing("notification-service", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Initialize MongoDB
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	client, coll, err := inbox.Connect(connectCtx, cfg.MongoURI, cfg.MongoDB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize MongoDB", zap.Error(err))
	}
	store := inbox.NewStore(coll)
	if err := store.EnsureIndexes(connectCtx); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}
	cancelConnect()
	defer client.Disconnect(context.Background())

	// Initialize Kafka consumer
	consumer, err := pkgkafka.InitConsumer(pkgkafka.Brokers(cfg.KafkaBroker), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	pushHub := hub.New(logger)
	processor := notifier.New(store, notifier.NewLogSender(logger), pushHub, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start Kafka consumer in background
	go func() {
		if err := kafka.NewConsumer(processor, logger).Run(ctx, consumer, cfg.NotificationTopic); err != nil && ctx.Err() == nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	handler := handlers.NewNotificationHandler(store, pushHub, cfg.JWTSecret, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("notification-service"))
	router.Use(telemetry.LoggerMiddleware(logger))
	router.Use(telemetry.MetricsMiddleware("notification-service"))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", telemetry.PrometheusHandler())
	router.GET("/ws", handler.Stream)

	authed := router.Group("/", handlers.Authenticate(cfg.JWTSecret))
	authed.GET("/notifications", handler.List)
	authed.PUT("/notifications/:id/read", handler.MarkRead)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Notification Service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
