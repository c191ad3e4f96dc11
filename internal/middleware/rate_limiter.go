package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often one client IP may hit the read API.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	ExpiresIn time.Duration
}

// DefaultRateLimit is applied to /api routes.
var DefaultRateLimit = RateLimitConfig{PerSecond: 10, Burst: 20, ExpiresIn: 3 * time.Minute}

// RateLimiter creates a token bucket limiter keyed by client IP.
func RateLimiter(cfg RateLimitConfig) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		// In-memory buckets are enough for a single process.
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.PerSecond),
			Burst:     cfg.Burst,
			ExpiresIn: cfg.ExpiresIn,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			FromContext(c.Request().Context()).Warn("Rate limit exceeded", "client", identifier)
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"success": false,
				"error":   "Too many requests. Please try again later.",
			})
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
