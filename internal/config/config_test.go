package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store:    StoreConfig{Driver: "postgres"},
		Database: DatabaseConfig{URL: "postgres://localhost/tourbook"},
		JWT:      JWTConfig{Secret: "secret"},
		Razorpay: RazorpayConfig{
			KeyID:     "rzp_test_key",
			KeySecret: "rzp_test_secret",
			Timeout:   10 * time.Second,
			MinAmount: 100,
			MaxAmount: 1000000,
		},
		Booking: BookingConfig{FullRefundHours: 48, PartialRefundHours: 24, PartialRefundPercent: 50},
		Mail:    MailConfig{Mode: "log"},
		Notify:  NotifyConfig{Driver: "memory"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "sqlite" }, "STORE_DRIVER"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"missing razorpay secret", func(c *Config) { c.Razorpay.KeySecret = "" }, "RAZORPAY_KEY_SECRET"},
		{"inverted amount range", func(c *Config) { c.Razorpay.MaxAmount = 50 }, "amount range"},
		{"refund windows overlap", func(c *Config) { c.Booking.PartialRefundHours = 48 }, "PARTIAL_REFUND_HOURS"},
		{"mailjet without keys", func(c *Config) { c.Mail.Mode = "mailjet" }, "MAILJET"},
		{"unknown notify driver", func(c *Config) { c.Notify.Driver = "kafka" }, "NOTIFY_DRIVER"},
		{"rate limit without window", func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true, MaxRequests: 5} }, "RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_MemoryStoreNeedsNoDatabase(t *testing.T) {
	c := validConfig()
	c.Store.Driver = "memory"
	c.Database.URL = ""
	assert.NoError(t, c.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_SLICE", " a, b ,,c ")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 7, getEnvAsInt("TEST_BAD_INT", 7))
	assert.False(t, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsSlice("TEST_SLICE", nil))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET_VALUE", "fallback"))
}
