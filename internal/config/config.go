package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Persistence configuration
	Store StoreConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Razorpay RazorpayConfig

	// Booking policy
	Booking BookingConfig

	// Outbound mail
	Mail MailConfig

	// Notification queue
	Notify NotifyConfig

	// Checkout rate limiting
	RateLimit RateLimitConfig

	// Metrics
	Metrics MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string // "postgres" or "memory"
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration. Tokens are issued by the
// identity service; this service only validates them.
type JWTConfig struct {
	Secret string
	Issuer string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RazorpayConfig holds payment gateway configuration
type RazorpayConfig struct {
	KeyID     string // public key id, echoed to the client checkout
	KeySecret string // SECRET - signs payment callbacks, never exposed
	BaseURL   string
	Timeout   time.Duration
	Currency  string
	MinAmount int64 // minor units
	MaxAmount int64 // minor units
}

// BookingConfig holds booking and cancellation policy values
type BookingConfig struct {
	FullRefundHours      int
	PartialRefundHours   int
	PartialRefundPercent int
	CompletionInterval   time.Duration
	ReceiptCompanyName   string
}

// MailConfig holds transactional mail configuration
type MailConfig struct {
	Mode              string // "log" or "mailjet"
	MailjetPublicKey  string
	MailjetPrivateKey string
	FromEmail         string
	FromName          string
}

// NotifyConfig holds notification queue configuration
type NotifyConfig struct {
	Driver        string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueKey      string
	QueueSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
}

// RateLimitConfig holds per-IP checkout throttling configuration.
// The Redis backend is used whenever NOTIFY_DRIVER is redis.
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Request-ID"}),
		},
		Razorpay: RazorpayConfig{
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Timeout:   time.Duration(getEnvAsInt("RAZORPAY_TIMEOUT_SECONDS", 15)) * time.Second,
			Currency:  getEnv("RAZORPAY_CURRENCY", "INR"),
			MinAmount: int64(getEnvAsInt("RAZORPAY_MIN_AMOUNT", 100)),
			MaxAmount: int64(getEnvAsInt("RAZORPAY_MAX_AMOUNT", 50000000)),
		},
		Booking: BookingConfig{
			FullRefundHours:      getEnvAsInt("BOOKING_FULL_REFUND_HOURS", 48),
			PartialRefundHours:   getEnvAsInt("BOOKING_PARTIAL_REFUND_HOURS", 24),
			PartialRefundPercent: getEnvAsInt("BOOKING_PARTIAL_REFUND_PERCENT", 50),
			CompletionInterval:   time.Duration(getEnvAsInt("BOOKING_COMPLETION_INTERVAL_MINUTES", 60)) * time.Minute,
			ReceiptCompanyName:   getEnv("RECEIPT_COMPANY_NAME", "TourBook"),
		},
		Mail: MailConfig{
			Mode:              getEnv("MAIL_MODE", "log"), // "log" or "mailjet"
			MailjetPublicKey:  getEnv("MAILJET_API_KEY_PUBLIC", ""),
			MailjetPrivateKey: getEnv("MAILJET_API_KEY_PRIVATE", ""),
			FromEmail:         getEnv("MAIL_FROM_EMAIL", "bookings@tourbook.local"),
			FromName:          getEnv("MAIL_FROM_NAME", "TourBook"),
		},
		Notify: NotifyConfig{
			Driver:        getEnv("NOTIFY_DRIVER", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			QueueKey:      getEnv("NOTIFY_QUEUE_KEY", "booking:notifications"),
			QueueSize:     getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			MaxAttempts:   getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
			RetryBackoff:  time.Duration(getEnvAsInt("NOTIFY_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvAsBool("RATE_LIMIT_ENABLED", true),
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 20),
			Window:      time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %s (must be 'postgres' or 'memory')", c.Store.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Razorpay.KeyID == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID is required")
	}
	if c.Razorpay.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}
	if c.Razorpay.Timeout <= 0 {
		return fmt.Errorf("RAZORPAY_TIMEOUT_SECONDS must be positive")
	}
	if c.Razorpay.MinAmount <= 0 || c.Razorpay.MaxAmount < c.Razorpay.MinAmount {
		return fmt.Errorf("invalid Razorpay amount range: %d..%d", c.Razorpay.MinAmount, c.Razorpay.MaxAmount)
	}

	if c.Booking.PartialRefundHours >= c.Booking.FullRefundHours {
		return fmt.Errorf("BOOKING_PARTIAL_REFUND_HOURS must be below BOOKING_FULL_REFUND_HOURS")
	}

	if c.Mail.Mode == "mailjet" {
		if c.Mail.MailjetPublicKey == "" || c.Mail.MailjetPrivateKey == "" {
			return fmt.Errorf("MAILJET_API_KEY_PUBLIC and MAILJET_API_KEY_PRIVATE are required for mailjet mode")
		}
	} else if c.Mail.Mode != "log" {
		return fmt.Errorf("invalid MAIL_MODE: %s (must be 'log' or 'mailjet')", c.Mail.Mode)
	}

	if c.Notify.Driver != "memory" && c.Notify.Driver != "redis" {
		return fmt.Errorf("invalid NOTIFY_DRIVER: %s (must be 'memory' or 'redis')", c.Notify.Driver)
	}

	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS and RATE_LIMIT_WINDOW_SECONDS must be positive")
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
