package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "DWML/pkg/http"
)

const (
	ServiceName    = "dwml-backend"
	ServiceVersion = "1.0.0"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthEchoHandler serves /health.
type HealthEchoHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthEchoHandler(checks map[string]HealthCheck) *HealthEchoHandler {
	return &HealthEchoHandler{checks: checks, timeout: 3 * time.Second}
}

func (h *HealthEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

// Health runs every check. Any failure turns the response into a 503 "unhealthy".
func (h *HealthEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp := xhttp.HealthResponse{Status: "healthy", Service: ServiceName, Version: ServiceVersion}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	code := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = "down"
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	return c.JSON(code, resp)
}

// Routes combines several handlers into one.
type Routes []xhttp.Handler

func (r Routes) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
