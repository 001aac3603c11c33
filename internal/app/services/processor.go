package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

type sessionExchanger interface {
	Exchange(ctx context.Context, linkToken, publicToken string) (domain.LinkSession, error)
}

type statementRunner interface {
	Run(ctx context.Context, session domain.LinkSession) (PipelineResult, error)
}

type statementNotifier interface {
	Notify(ctx context.Context, ownerID string, result PipelineResult)
}

// WebhookProcessor routes a verified webhook through exchange, statement
// retrieval and notification.
type WebhookProcessor struct {
	exchanger sessionExchanger
	pipeline  statementRunner
	notifier  statementNotifier
	sessions  ports.SessionStore
	log       *slog.Logger
	metrics   deliveryMetrics
}

// NewWebhookProcessor constructs a processor.
func NewWebhookProcessor(exchanger sessionExchanger, pipeline statementRunner, notifier statementNotifier, sessions ports.SessionStore, log *slog.Logger) *WebhookProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookProcessor{
		exchanger: exchanger,
		pipeline:  pipeline,
		notifier:  notifier,
		sessions:  sessions,
		log:       log,
		metrics:   newDeliveryMetrics(),
	}
}

// Process handles one webhook. Unhandled kinds and webhooks carrying an
// error payload are logged and ignored.
func (p *WebhookProcessor) Process(ctx context.Context, env domain.WebhookEnvelope) error {
	kind := env.Kind()
	if env.Error != nil {
		p.metrics.recordWebhook(ctx, kind, "error_payload")
		p.log.WarnContext(ctx, "Webhook reported an error, skipping",
			"kind", kind, "item_id", env.ItemID,
			"error_type", env.Error.ErrorType, "error_code", env.Error.ErrorCode, "error_message", env.Error.ErrorMessage)
		return nil
	}

	var err error
	switch kind {
	case domain.WebhookTypeLink + "/" + domain.WebhookCodeItemAddResult:
		err = p.handleLink(ctx, env, true)
	case domain.WebhookTypeLink + "/" + domain.WebhookCodeSessionFinished:
		err = p.handleLink(ctx, env, false)
	case domain.WebhookTypeStatements + "/" + domain.WebhookCodeStatementsRefreshComplete:
		err = p.handleRefresh(ctx, env)
	default:
		p.metrics.recordWebhook(ctx, kind, "ignored")
		p.log.InfoContext(ctx, "Ignoring unhandled webhook", "kind", kind)
		return nil
	}

	if err != nil {
		p.metrics.recordWebhook(ctx, kind, string(ClassifyProcessError(err)))
		return err
	}
	p.metrics.recordWebhook(ctx, kind, "processed")
	return nil
}

func (p *WebhookProcessor) handleLink(ctx context.Context, env domain.WebhookEnvelope, requireToken bool) error {
	publicToken := env.ResolvedPublicToken()
	if publicToken == "" {
		if requireToken {
			return fmt.Errorf("%w: link token %q", ErrMissingPublicToken, env.LinkToken)
		}
		p.log.InfoContext(ctx, "Link session finished without a public token", "link_token", env.LinkToken)
		return nil
	}

	session, err := p.exchanger.Exchange(ctx, env.LinkToken, publicToken)
	if err != nil {
		return err
	}
	return p.deliver(ctx, session)
}

func (p *WebhookProcessor) handleRefresh(ctx context.Context, env domain.WebhookEnvelope) error {
	itemID := strings.TrimSpace(env.ItemID)
	if itemID == "" {
		return fmt.Errorf("%w: refresh webhook without item id", ErrUnknownSession)
	}
	if p.sessions == nil {
		return errors.New("session store is not configured")
	}
	session, err := p.sessions.GetSessionByItemID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("%w: item %q", ErrUnknownSession, itemID)
		}
		return fmt.Errorf("load session by item: %w", err)
	}
	return p.deliver(ctx, session)
}

func (p *WebhookProcessor) deliver(ctx context.Context, session domain.LinkSession) error {
	result, err := p.pipeline.Run(ctx, session)
	if err != nil {
		return err
	}
	p.notifier.Notify(ctx, session.RepID, result)
	return nil
}
