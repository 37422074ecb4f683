package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tourbook/booking-service/internal/utils"
)

// Limiter decides whether a request from identifier may proceed
type Limiter interface {
	Allow(ctx context.Context, scope, identifier string) (bool, time.Duration)
}

// RateLimit rejects requests beyond the limiter's budget for the client IP
func RateLimit(limiter Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.Request.Context(), scope, utils.GetRealIP(c))
		if allowed {
			c.Next()
			return
		}

		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate_limited",
			"message":    "too many requests, please try again later",
			"code":       "RATE_LIMITED",
			"retryAfter": seconds,
			"requestId":  GetRequestID(c),
		})
		c.Abort()
	}
}
