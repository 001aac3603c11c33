package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fr0stylo/ledgerlink/internal/observability"
)

const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthRoutes reports liveness and database reachability.
type HealthRoutes struct {
	db pinger
}

// NewHealthRoutes constructs health routes. A nil pinger skips the database check.
func NewHealthRoutes(db pinger) *HealthRoutes {
	return &HealthRoutes{db: db}
}

// RegisterRoutes registers the health endpoint.
func (h *HealthRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET(observability.HealthPath, h.handleHealth)
}

func (h *HealthRoutes) handleHealth(c echo.Context) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
