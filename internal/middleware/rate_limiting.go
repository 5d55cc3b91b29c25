package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/config"
)

// RateLimitMiddleware limits every request per client IP.
func RateLimitMiddleware(manager *RateLimitManager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if shouldBypassRateLimit(c.Request) {
			c.Next()
			return
		}

		limiter := manager.GetLimiter(LimiterGeneral, c.ClientIP(), cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBurst)
		if limiter != nil && !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OrderRateLimitMiddleware applies the stricter budget for creating and verifying orders.
// Default: 10 requests per 60 seconds.
func OrderRateLimitMiddleware(manager *RateLimitManager, cfg *config.Config) gin.HandlerFunc {
	requestsPerWindow := cfg.OrderRateLimitRequests
	if requestsPerWindow <= 0 {
		requestsPerWindow = 10
	}
	windowSeconds := cfg.OrderRateLimitWindow
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	return func(c *gin.Context) {
		limiter := manager.GetLimiter(LimiterOrders, c.ClientIP(), requestsPerWindow, windowSeconds, 0)
		if limiter != nil && !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":          "order rate limit exceeded",
				"retry_after":    windowSeconds,
				"max_requests":   requestsPerWindow,
				"window_seconds": windowSeconds,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func shouldBypassRateLimit(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	switch r.URL.Path {
	case "/health", "/metrics", "/favicon.ico":
		return true
	}
	return false
}
