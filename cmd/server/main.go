package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/config"
	"github.com/tourbook/booking-service/internal/database"
	"github.com/tourbook/booking-service/internal/handlers"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/internal/services"
	"github.com/tourbook/booking-service/pkg/jwt"
	"github.com/tourbook/booking-service/pkg/mailer"
	"github.com/tourbook/booking-service/pkg/metrics"
	"github.com/tourbook/booking-service/pkg/notify"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting tour booking service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("tourbook", registry)

	// Persistence
	store := openStore(cfg, logger)
	defer store.Close()

	// Notifications and checkout throttling share Redis when it is configured
	var redisClient *redis.Client
	if cfg.Notify.Driver == "redis" {
		redisClient = openRedis(cfg, logger)
	}
	queue := openQueue(cfg, redisClient, logger)
	defer queue.Close() // closes the shared redis client

	var sender mailer.Sender
	if cfg.Mail.Mode == "mailjet" {
		logger.Info("Mailjet sender enabled")
		sender = mailer.NewMailjetSender(cfg.Mail.MailjetPublicKey, cfg.Mail.MailjetPrivateKey, cfg.Mail.FromEmail, cfg.Mail.FromName, logger)
	} else {
		logger.Info("Mail in log mode (no email will be sent)")
		sender = mailer.NewLogSender(logger)
	}

	notificationService := services.NewNotificationService(queue, sender, cfg.Notify.MaxAttempts, cfg.Notify.RetryBackoff, m, logger)
	notificationService.Start()

	// Booking flow
	gateway := services.NewRazorpayService(&cfg.Razorpay, m, logger)
	orchestrator := services.NewBookingOrchestratorService(
		store,
		gateway,
		notificationService,
		m,
		services.BookingOrchestratorConfig{
			Currency:             cfg.Razorpay.Currency,
			FullRefundHours:      cfg.Booking.FullRefundHours,
			PartialRefundHours:   cfg.Booking.PartialRefundHours,
			PartialRefundPercent: cfg.Booking.PartialRefundPercent,
		},
		logger,
	)

	completionService := services.NewBookingCompletionService(store.Bookings(), cfg.Booking.CompletionInterval, m, logger)
	completionService.Start()

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Hour)

	var limiter *services.RateLimitService
	if cfg.RateLimit.Enabled {
		var limitStore services.RateLimitStore = services.NewMemoryRateLimitStore()
		if redisClient != nil {
			limitStore = services.NewRedisRateLimitStore(redisClient)
		}
		limiter = services.NewRateLimitService(limitStore, services.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}, m, logger)
	}

	deps := handlers.RouterDeps{
		Bookings: handlers.NewBookingHandler(orchestrator, cfg.Booking.ReceiptCompanyName, logger),
		Admin:    handlers.NewAdminPaymentHandler(services.NewPaymentAuditService(store.Audits(), logger), logger),
		Health:   handlers.NewHealthHandler(store, version),
		JWT:      jwtService,
		Metrics:  m,
		CORS:     cfg.CORS,
		Logger:   logger,
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		deps.MetricsPath = cfg.Metrics.Path
	}
	router := handlers.SetupRouter(deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	completionService.Stop()
	notificationService.Stop()

	logger.Info("Server exited successfully")
}

func openStore(cfg *config.Config, logger *logrus.Logger) database.Store {
	if cfg.Store.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		store := database.NewMemoryStore()
		seedDemoTour(store, logger)
		return store
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connection established")
	return database.NewPostgresStore(db, logger)
}

func openRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := notify.NewRedisClient(ctx, cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisDB)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	logger.WithField("addr", cfg.Notify.RedisAddr).Info("Redis connected")
	return client
}

func openQueue(cfg *config.Config, client *redis.Client, logger *logrus.Logger) notify.Queue {
	if client == nil {
		return notify.NewMemoryQueue(cfg.Notify.QueueSize)
	}
	logger.WithField("key", cfg.Notify.QueueKey).Info("Redis notification queue enabled")
	return notify.NewRedisQueue(client, cfg.Notify.QueueKey)
}

// seedDemoTour gives the in-memory store one bookable tour for local testing
func seedDemoTour(store *database.MemoryStore, logger *logrus.Logger) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	tour := models.Tour{
		ID:           uuid.New(),
		Title:        "Demo Hill Country Trek",
		Price:        1000,
		MaxGroupSize: 12,
		Currency:     "INR",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, days := range []int{3, 10, 30} {
		tour.Slots = append(tour.Slots, models.DateSlot{
			ID:            uuid.New(),
			StartDate:     now.AddDate(0, 0, days),
			EndDate:       now.AddDate(0, 0, days+2),
			TotalCapacity: 12,
			IsAvailable:   true,
		})
	}
	store.AddTour(tour)

	logger.WithField("tour_id", tour.ID).Info("Seeded demo tour")
}
