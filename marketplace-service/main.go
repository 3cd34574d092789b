package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/cache"
	"agromart/marketplace-service/cart"
	"agromart/marketplace-service/config"
	"agromart/marketplace-service/handlers"
	"agromart/marketplace-service/middleware"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/notify"
	"agromart/marketplace-service/orders"
	"agromart/marketplace-service/store/postgres"
	"agromart/pkg/kafka"
	"agromart/pkg/telemetry"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	cartTTL           = 30 * 24 * time.Hour
	notificationQueue = 1024
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
	shutdown, err := telemetry.InitTracing("marketplace-service", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Initialize database
	db, err := postgres.InitDB(cfg.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	store := postgres.NewStore(db, logger)

	// Initialize Redis
	rdb, err := cache.InitRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(kafka.Brokers(cfg.KafkaBroker), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	dispatcher := notify.NewDispatcher(notify.NewKafkaPublisher(producer, cfg.NotificationTopic, logger), notificationQueue, logger)
	dispatcher.Start()

	carts := cart.NewRedisStore(rdb, cartTTL)
	listings := cache.NewCatalog(rdb, cfg.ProductCacheTTL)
	sessions := auth.NewSessions(rdb, cfg.JWTSecret, cfg.SessionTTL)
	engine := orders.NewEngine(store, store, carts, orders.Config{
		Pricing: orders.Pricing{
			TaxRate:         cfg.TaxRate,
			ShippingPerItem: cfg.ShippingPerItem,
			CODSurcharge:    cfg.CODSurcharge,
		},
		NumberRetries: cfg.OrderNumberRetries,
		DeliveryDays:  cfg.EstimatedDeliveryDays,
	}, logger)

	authHandler := handlers.NewAuthHandler(store, auth.NewOTP(rdb, cfg.OTPTTL), sessions, dispatcher, logger)
	catalogHandler := handlers.NewCatalogHandler(store, listings, logger)
	cartHandler := handlers.NewCartHandler(cart.NewService(carts, store, logger), logger)
	orderHandler := handlers.NewOrderHandler(engine, store, dispatcher, listings, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("marketplace-service"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(telemetry.LoggerMiddleware(logger))
	router.Use(telemetry.MetricsMiddleware("marketplace-service"))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", telemetry.PrometheusHandler())

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/otp/request", authHandler.RequestOTP)
	router.POST("/auth/otp/verify", authHandler.VerifyOTP)
	router.POST("/auth/logout", authHandler.Logout)

	router.GET("/products", catalogHandler.ListProducts)
	router.GET("/products/:id", catalogHandler.GetProduct)
	router.GET("/waste-products", catalogHandler.ListWasteProducts)
	router.GET("/waste-products/:id", catalogHandler.GetWasteProduct)

	authed := router.Group("/", middleware.Authenticate(sessions, logger))
	authed.GET("/auth/me", authHandler.Me)

	sellers := authed.Group("/", middleware.RequireRole(models.RoleFarmer, models.RoleIndustry, models.RoleRecycler))
	sellers.POST("/products", catalogHandler.CreateProduct)
	sellers.PUT("/products/:id/stock", catalogHandler.UpdateProductStock)
	sellers.POST("/waste-products", catalogHandler.CreateWasteProduct)
	sellers.PUT("/waste-products/:id/quantity", catalogHandler.UpdateWasteQuantity)

	authed.GET("/cart", cartHandler.GetCart)
	authed.POST("/cart", cartHandler.AddItem)
	authed.DELETE("/cart", cartHandler.ClearCart)
	authed.PUT("/cart/:productId", cartHandler.UpdateItem)
	authed.DELETE("/cart/:productId", cartHandler.RemoveItem)

	authed.POST("/orders", orderHandler.CreateOrder)
	authed.GET("/orders/myorders", orderHandler.MyOrders)
	authed.GET("/orders/:id", orderHandler.GetOrder)
	authed.PUT("/orders/:id/cancel", orderHandler.CancelOrder)

	admin := authed.Group("/", middleware.RequireRole(models.RoleAdmin))
	admin.PUT("/orders/:id/status", orderHandler.UpdateStatus)
	admin.GET("/orders/stats/dashboard", orderHandler.Stats)
	admin.GET("/orders/export", orderHandler.Export)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Marketplace Service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("Notification queue not drained", zap.Error(err))
	}

	logger.Info("Server exited")
}
