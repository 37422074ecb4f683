package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/config"
	"github.com/tourbook/booking-service/internal/middleware"
	"github.com/tourbook/booking-service/pkg/jwt"
	"github.com/tourbook/booking-service/pkg/metrics"
)

// RouterDeps carries everything the HTTP router mounts
type RouterDeps struct {
	Bookings *BookingHandler
	Admin    *AdminPaymentHandler
	Health   *HealthHandler
	JWT      *jwt.Service
	Metrics  *metrics.Metrics
	CORS     config.CORSConfig
	Logger   *logrus.Logger

	// Limiter throttles checkout endpoints per client IP when non-nil
	Limiter middleware.Limiter

	// MetricsHandler is mounted at MetricsPath when non-nil
	MetricsHandler http.Handler
	MetricsPath    string
}

// SetupRouter builds the gin engine with middleware and all routes
func SetupRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(d.Logger, d.Metrics))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORS.AllowedOrigins,
		AllowMethods:     d.CORS.AllowedMethods,
		AllowHeaders:     d.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !containsWildcard(d.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", d.Health.Health)
	if d.MetricsHandler != nil {
		router.GET(d.MetricsPath, gin.WrapH(d.MetricsHandler))
	}

	auth := middleware.AuthMiddleware(d.JWT, d.Logger)
	optionalAuth := middleware.OptionalAuth(d.JWT, d.Logger)
	createLimit, completeLimit := passThrough, passThrough
	if d.Limiter != nil {
		createLimit = middleware.RateLimit(d.Limiter, "create_order")
		completeLimit = middleware.RateLimit(d.Limiter, "complete_booking")
	}

	v1 := router.Group("/api/v1")
	{
		booking := v1.Group("/booking")
		{
			// Checkout works for guests and signed-in users
			booking.POST("/create-payment-order", createLimit, optionalAuth, d.Bookings.CreatePaymentOrder)
			booking.POST("/complete-booking", completeLimit, optionalAuth, d.Bookings.CompleteBooking)

			booking.GET("/my-bookings", auth, d.Bookings.ListMyBookings)
			booking.GET("/:bookingId", auth, d.Bookings.GetBooking)
			booking.GET("/:bookingId/receipt", auth, d.Bookings.DownloadReceipt)
			booking.PUT("/:bookingId/cancel", auth, d.Bookings.CancelBooking)
		}

		admin := v1.Group("/admin", auth, middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.GET("/payments/mismatches", d.Admin.ListAmountMismatches)
			admin.GET("/payments/audit/:orderId", d.Admin.GetOrderTrail)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "not_found",
			"message":   "route not found",
			"requestId": middleware.GetRequestID(c),
		})
	})

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func passThrough(c *gin.Context) {
	c.Next()
}
