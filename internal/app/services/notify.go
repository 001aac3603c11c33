package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

// Strategy is how delivered statements reach the recipient.
type Strategy string

const (
	// StrategyNone means nothing is sent.
	StrategyNone Strategy = "none"
	// StrategyInline attaches the statement files to the message.
	StrategyInline Strategy = "inline"
	// StrategyLinks sends expiring download links.
	StrategyLinks Strategy = "links"
)

const (
	// DefaultInlineThreshold is the largest count still sent as attachments.
	DefaultInlineThreshold = 5
	// DefaultLinkExpiry is the validity of pre-signed download links.
	DefaultLinkExpiry = 24 * time.Hour

	defaultMailTimeout    = 30 * time.Second
	defaultPresignTimeout = 10 * time.Second
)

// ChooseStrategy picks the delivery strategy for count statements using
// the default inline threshold.
func ChooseStrategy(count int) Strategy {
	return chooseStrategy(count, DefaultInlineThreshold)
}

func chooseStrategy(count, threshold int) Strategy {
	switch {
	case count <= 0:
		return StrategyNone
	case count <= threshold:
		return StrategyInline
	default:
		return StrategyLinks
	}
}

// NotifyConfig tunes notification delivery.
type NotifyConfig struct {
	InlineThreshold int
	LinkExpiry      time.Duration
	MailTimeout     time.Duration
}

// NotificationDispatcher e-mails delivered statements to the owning rep.
type NotificationDispatcher struct {
	recipients ports.RecipientStore
	blobs      ports.BlobStore
	mailer     ports.Mailer
	cfg        NotifyConfig
	log        *slog.Logger
	metrics    deliveryMetrics
}

// NewNotificationDispatcher constructs a notification dispatcher.
func NewNotificationDispatcher(recipients ports.RecipientStore, blobs ports.BlobStore, mailer ports.Mailer, cfg NotifyConfig, log *slog.Logger) *NotificationDispatcher {
	if cfg.InlineThreshold <= 0 {
		cfg.InlineThreshold = DefaultInlineThreshold
	}
	if cfg.LinkExpiry <= 0 {
		cfg.LinkExpiry = DefaultLinkExpiry
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = defaultMailTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &NotificationDispatcher{
		recipients: recipients,
		blobs:      blobs,
		mailer:     mailer,
		cfg:        cfg,
		log:        log,
		metrics:    newDeliveryMetrics(),
	}
}

// Notify sends the pipeline outcome to ownerID's recipient. Failures are
// logged and never returned.
func (d *NotificationDispatcher) Notify(ctx context.Context, ownerID string, result PipelineResult) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "notify.send")
	defer span.End()

	strategy := chooseStrategy(result.Delivered, d.cfg.InlineThreshold)
	span.SetAttributes(attribute.String("rep.id", ownerID), attribute.String("notify.strategy", string(strategy)))
	if strategy == StrategyNone {
		d.log.InfoContext(ctx, "No delivered statements, skipping notification", "rep_id", ownerID, "failed", result.Failed)
		return
	}

	recipient, err := d.recipients.GetRecipient(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			d.metrics.recordNotification(ctx, strategy, "no_recipient")
			d.log.WarnContext(ctx, "No notification recipient for rep", "rep_id", ownerID)
			return
		}
		d.metrics.recordNotification(ctx, strategy, "lookup_failed")
		d.log.ErrorContext(ctx, "Recipient lookup failed", "rep_id", ownerID, "error", err)
		return
	}
	if strings.TrimSpace(recipient.Email) == "" {
		d.metrics.recordNotification(ctx, strategy, "no_recipient")
		d.log.WarnContext(ctx, "Recipient has no e-mail address", "rep_id", ownerID)
		return
	}

	switch strategy {
	case StrategyInline:
		err = d.sendInline(ctx, recipient.Email, ownerID, result)
	case StrategyLinks:
		err = d.sendLinks(ctx, recipient.Email, ownerID, result)
	}
	if err != nil {
		d.metrics.recordNotification(ctx, strategy, "failed")
		span.RecordError(err)
		d.log.ErrorContext(ctx, "Statement notification failed", "rep_id", ownerID, "strategy", strategy, "error", err)
		return
	}
	d.metrics.recordNotification(ctx, strategy, "sent")
	d.log.InfoContext(ctx, "Statement notification sent", "rep_id", ownerID, "strategy", strategy, "statements", result.Delivered)
}

func (d *NotificationDispatcher) sendInline(ctx context.Context, to, repID string, result PipelineResult) error {
	attachments := make([]ports.Attachment, 0, len(result.Blobs))
	for _, blob := range result.Blobs {
		attachments = append(attachments, ports.Attachment{
			Filename:    blob.Filename(),
			ContentType: StatementContentType,
			Data:        blob.Data,
		})
	}
	mailCtx, cancel := context.WithTimeout(ctx, d.cfg.MailTimeout)
	defer cancel()
	return d.mailer.SendWithAttachments(mailCtx, to, repID, attachments)
}

func (d *NotificationDispatcher) sendLinks(ctx context.Context, to, repID string, result PipelineResult) error {
	links := make([]ports.StatementLink, 0, len(result.Keys))
	for _, key := range result.Keys {
		presignCtx, cancel := context.WithTimeout(ctx, defaultPresignTimeout)
		url, err := d.blobs.PresignGet(presignCtx, key, d.cfg.LinkExpiry)
		cancel()
		if err != nil {
			d.log.WarnContext(ctx, "Presigning statement link failed", "key", key, "error", err)
			continue
		}
		links = append(links, ports.StatementLink{URL: url, ExpiresIn: d.cfg.LinkExpiry})
	}
	if len(links) == 0 {
		return errors.New("no statement links could be generated")
	}
	mailCtx, cancel := context.WithTimeout(ctx, d.cfg.MailTimeout)
	defer cancel()
	return d.mailer.SendWithLinks(mailCtx, to, repID, links)
}
