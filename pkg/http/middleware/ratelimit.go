package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Reserver decides whether a key may proceed and, if not, how long to wait.
type Reserver interface {
	Reserve(key string) (bool, time.Duration)
}

// RateLimit rejects requests over budget with 429 and a Retry-After header.
// Requests are keyed by client IP. skip exempts paths such as /health.
func RateLimit(r Reserver, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok {
				return next(c)
			}
			ok, wait := r.Reserve(c.RealIP())
			if ok {
				return next(c)
			}
			if wait > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
		}
	}
}
