package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type webhookHandler interface {
	Handle(w http.ResponseWriter, r *http.Request) error
}

// WebhookRoutes registers the aggregator webhook endpoint.
type WebhookRoutes struct {
	path    string
	handler webhookHandler
}

// NewWebhookRoutes constructs webhook routes mounted at path.
func NewWebhookRoutes(path string, handler webhookHandler) *WebhookRoutes {
	if path == "" {
		path = "/plaid/webhook"
	}
	return &WebhookRoutes{path: path, handler: handler}
}

// RegisterRoutes registers webhook endpoints.
func (w *WebhookRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST(w.path, w.handleWebhook)
}

func (w *WebhookRoutes) handleWebhook(c echo.Context) error {
	return w.handler.Handle(c.Response(), c.Request())
}
