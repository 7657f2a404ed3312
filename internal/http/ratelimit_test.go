package http

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRateLimitedRouter(rl *RequestRateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/api/items", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": 0})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return router
}

func TestRequestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRequestRateLimiter(60, 5)
	defer rl.Stop()

	router := newRateLimitedRouter(rl)

	for i := 0; i < 5; i++ {
		w := performRequest(router, "GET", "/api/items", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d within burst should pass", i+1)
	}
}

func TestRequestRateLimiter_RejectsOverBudget(t *testing.T) {
	rl := NewRequestRateLimiter(60, 2)
	defer rl.Stop()

	router := newRateLimitedRouter(rl)

	// Exhaust the burst; httptest requests all come from the same IP
	assert.Equal(t, http.StatusOK, performRequest(router, "GET", "/api/items", nil).Code)
	assert.Equal(t, http.StatusOK, performRequest(router, "GET", "/api/items", nil).Code)

	w := performRequest(router, "GET", "/api/items", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRequestRateLimiter_HealthBypassesBudget(t *testing.T) {
	rl := NewRequestRateLimiter(60, 1)
	defer rl.Stop()

	router := newRateLimitedRouter(rl)

	// Burn the budget, then confirm probes still get through
	performRequest(router, "GET", "/api/items", nil)
	assert.Equal(t, http.StatusTooManyRequests, performRequest(router, "GET", "/api/items", nil).Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, performRequest(router, "GET", "/health", nil).Code)
	}
}

func TestRequestRateLimiter_TracksClients(t *testing.T) {
	rl := NewRequestRateLimiter(60, 5)
	defer rl.Stop()

	assert.Equal(t, 0, rl.ClientCount())

	router := newRateLimitedRouter(rl)
	performRequest(router, "GET", "/api/items", nil)

	assert.Equal(t, 1, rl.ClientCount())
}

func TestRequestRateLimiter_Defaults(t *testing.T) {
	rl := NewRequestRateLimiter(0, 0)
	defer rl.Stop()

	// Zero config falls back to a usable budget
	assert.InDelta(t, 100.0/60.0, float64(rl.limit), 0.001)
	assert.Equal(t, 20, rl.burst)
}

func TestRequestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRequestRateLimiter(60, 5)

	rl.Stop()
	rl.Stop()
}
