package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

const defaultExchangeTimeout = 10 * time.Second

// TokenExchanger turns a link session's public token into a durable access
// credential exactly once.
type TokenExchanger struct {
	sessions ports.SessionStore
	client   ports.TokenExchangeClient
	timeout  time.Duration
	log      *slog.Logger
	metrics  deliveryMetrics
	now      func() time.Time
}

// NewTokenExchanger constructs a token exchanger.
func NewTokenExchanger(sessions ports.SessionStore, client ports.TokenExchangeClient, timeout time.Duration, log *slog.Logger) *TokenExchanger {
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &TokenExchanger{
		sessions: sessions,
		client:   client,
		timeout:  timeout,
		log:      log,
		metrics:  newDeliveryMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Exchange resolves the session for linkToken and stores the access
// credential obtained for publicToken. A session that already holds a
// credential is returned unchanged without calling the aggregator.
func (e *TokenExchanger) Exchange(ctx context.Context, linkToken, publicToken string) (domain.LinkSession, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "plaid.exchange")
	defer span.End()

	linkToken = strings.TrimSpace(linkToken)
	session, err := e.sessions.GetSessionByLinkToken(ctx, linkToken)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			e.metrics.recordExchange(ctx, "unknown_session")
			return domain.LinkSession{}, fmt.Errorf("%w: link token %q", ErrUnknownSession, linkToken)
		}
		span.SetStatus(codes.Error, err.Error())
		return domain.LinkSession{}, fmt.Errorf("load session: %w", err)
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.String("rep.id", session.RepID))

	if session.Exchanged() {
		e.metrics.recordExchange(ctx, "already_exchanged")
		e.log.InfoContext(ctx, "Session already exchanged", "session_id", session.ID, "rep_id", session.RepID)
		return session, nil
	}

	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return domain.LinkSession{}, ErrMissingPublicToken
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	result, err := e.client.ExchangePublicToken(callCtx, publicToken)
	cancel()
	if err != nil {
		e.metrics.recordExchange(ctx, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		return domain.LinkSession{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if strings.TrimSpace(result.AccessToken) == "" {
		e.metrics.recordExchange(ctx, "failed")
		return domain.LinkSession{}, fmt.Errorf("%w: empty access credential", ErrExchangeFailed)
	}

	wrote, err := e.sessions.SetCredentials(ctx, session.ID, result.AccessToken, result.ItemID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.LinkSession{}, fmt.Errorf("persist credentials: %w", err)
	}
	if !wrote {
		// A concurrent exchange stored its credential first; use the winner's.
		e.metrics.recordExchange(ctx, "lost_race")
		winner, err := e.sessions.GetSessionByLinkToken(ctx, linkToken)
		if err != nil {
			return domain.LinkSession{}, fmt.Errorf("reload session: %w", err)
		}
		return winner, nil
	}

	e.metrics.recordExchange(ctx, "exchanged")
	accessToken := result.AccessToken
	itemID := result.ItemID
	session.AccessToken = &accessToken
	session.ItemID = &itemID
	session.UpdatedAt = e.now()
	e.log.InfoContext(ctx, "Public token exchanged", "session_id", session.ID, "rep_id", session.RepID, "item_id", itemID)
	return session, nil
}
