package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"procurement-service/internal/clients"
	"procurement-service/internal/config"
	"procurement-service/internal/engine"
	"procurement-service/internal/events"
	"procurement-service/internal/handlers"
	"procurement-service/internal/jobs"
	"procurement-service/internal/middleware"
	"procurement-service/internal/models"
	"procurement-service/internal/repository"
	"procurement-service/internal/services"
)

// @title Procurement API
// @version 1.0.0
// @description Purchase request approval workflow service

// @contact.name API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8097
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}

	// Run database migrations
	logger.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.PurchaseRequest{},
		&models.ApprovalStep{},
		&models.RequestItem{},
		&models.RequestNote{},
		&models.RequestAuditLog{},
		&models.NotificationOutbox{},
	); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Initialize repository
	requestRepo := repository.NewRequestRepository(db)

	// Initialize event publisher (optional - service works without NATS)
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warnf("Failed to initialize event publisher: %v. Events will not be published.", err)
		} else {
			logger.Info("Event publisher initialized")
			defer publisher.Close()
		}
	} else {
		logger.Info("NATS_URL not configured, event publishing disabled")
	}

	// Initialize redis for role lookup caching (optional)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warnf("Invalid REDIS_URL: %v. Role lookup caching disabled.", err)
		} else {
			redisClient = redis.NewClient(opts)
			logger.Info("Redis role lookup cache initialized")
		}
	}

	// Initialize clients
	catalogClient := clients.NewCatalogClient(cfg.CatalogServiceURL, redisClient)
	notificationClient := clients.NewNotificationClient(cfg.NotificationServiceURL)

	// Initialize engine and service
	eng := engine.New()
	requestService := services.NewRequestService(requestRepo, eng, catalogClient, notificationClient, publisher, logger)

	// Initialize handlers
	requestHandler := handlers.NewRequestHandler(requestService)

	// Start reminder job
	reminderJob := jobs.NewReminderJob(requestRepo, requestService, eng, logger)
	jobCtx, jobCancel := context.WithCancel(context.Background())
	go reminderJob.Start(jobCtx)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))

	// Purchase request endpoints
	{
		api.POST("/purchase-requests", requestHandler.CreateRequest)
		api.GET("/purchase-requests/pending", requestHandler.ListPendingRequests)
		api.GET("/purchase-requests/my-requests", requestHandler.ListMyRequests)
		api.GET("/purchase-requests/:id", requestHandler.GetRequest)
		api.DELETE("/purchase-requests/:id", requestHandler.CancelRequest)
		api.POST("/purchase-requests/:id/steps", requestHandler.AddStep)
		api.POST("/purchase-requests/:id/steps/:kind/decision", requestHandler.DecideStep)
		api.GET("/purchase-requests/:id/history", requestHandler.GetRequestHistory)
		api.POST("/purchase-requests/:id/notes", requestHandler.AddNote)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8097"
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Procurement service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	logger.Info("Shutting down server...")

	// Stop reminder job
	jobCancel()
	reminderJob.Stop()
	logger.Info("Reminder job stopped")

	logger.Info("Server shutdown complete")
}
