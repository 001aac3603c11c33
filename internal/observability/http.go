package observability

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

const (
	serverName = "ledgerlink"
	// HealthPath serves liveness checks and is never traced.
	HealthPath = "/healthz"
)

// EchoMiddleware traces every request except health checks and preflights.
func EchoMiddleware() echo.MiddlewareFunc {
	return otelecho.Middleware(serverName, otelecho.WithSkipper(traceSkipper))
}

// EchoSpanEnrichmentMiddleware copies request id, matched route and the
// rep_id query parameter onto the request context and root span.
func EchoSpanEnrichmentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := WithRequestMetadata(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID), resolvedRoute(c))
			if repID := c.QueryParam("rep_id"); repID != "" {
				ctx = WithRepID(ctx, repID)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func traceSkipper(c echo.Context) bool {
	switch c.Request().Method {
	case http.MethodHead, http.MethodOptions:
		return true
	}
	switch strings.TrimSpace(c.Request().URL.Path) {
	case HealthPath, "/favicon.ico":
		return true
	}
	return false
}

// resolvedRoute prefers the registered pattern so unmatched paths do not
// explode route cardinality in spans and logs.
func resolvedRoute(c echo.Context) string {
	if route := strings.TrimSpace(c.Path()); route != "" {
		return route
	}
	return "unmatched"
}
