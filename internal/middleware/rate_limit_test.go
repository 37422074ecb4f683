package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	max   int
	calls map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, scope, identifier string) (bool, time.Duration) {
	key := scope + ":" + identifier
	l.calls[key]++
	if l.calls[key] > l.max {
		return false, 1500 * time.Millisecond
	}
	return true, 0
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &countingLimiter{max: 1, calls: map[string]int{}}

	router := gin.New()
	router.Use(RequestID())
	router.POST("/orders", RateLimit(limiter, "create_order"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)

	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMITED"`)
	assert.Equal(t, 2, limiter.calls["create_order:203.0.113.7"])
}
