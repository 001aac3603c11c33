package routes

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
	appservices "github.com/fr0stylo/ledgerlink/internal/app/services"
	"github.com/fr0stylo/ledgerlink/internal/observability"
)

type linkStarter interface {
	Start(ctx context.Context, repID string) (ports.LinkToken, domain.LinkSession, error)
}

// LinkRoutes starts hosted bank-link sessions.
type LinkRoutes struct {
	links linkStarter
}

// NewLinkRoutes constructs link routes.
func NewLinkRoutes(links linkStarter) *LinkRoutes {
	return &LinkRoutes{links: links}
}

// RegisterRoutes registers the link endpoint.
func (l *LinkRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/link", l.handleStartLink)
}

func (l *LinkRoutes) handleStartLink(c echo.Context) error {
	repID := strings.TrimSpace(c.QueryParam("rep_id"))
	ctx := observability.WithRepID(c.Request().Context(), repID)

	token, _, err := l.links.Start(ctx, repID)
	if err != nil {
		return writeLinkHTTPError(c, err)
	}
	return c.Redirect(http.StatusFound, token.HostedLinkURL)
}

func writeLinkHTTPError(c echo.Context, err error) error {
	switch appservices.ClassifyProcessError(err) {
	case appservices.ProcessErrorInvalidInput:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "rep_id is required"})
	case appservices.ProcessErrorLinkToken:
		c.Logger().Error(err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "could not create link session"})
	default:
		return err
	}
}
