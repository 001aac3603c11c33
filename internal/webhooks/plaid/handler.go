// Package plaid receives signed aggregator webhooks and hands them to the
// dispatch pool.
package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	appservices "github.com/fr0stylo/ledgerlink/internal/app/services"
	"github.com/fr0stylo/ledgerlink/internal/dispatch"
	"github.com/fr0stylo/ledgerlink/internal/verification"
)

const (
	// DefaultVerificationHeader carries the signed verification token.
	DefaultVerificationHeader = "Plaid-Verification"
	// MaxPayloadBytes bounds the webhook body.
	MaxPayloadBytes = 1 << 20
)

var (
	errUnreadableBody  = errors.New("unreadable webhook body")
	errPayloadTooLarge = errors.New("webhook body too large")
	errInvalidPayload  = errors.New("invalid webhook payload")
)

type webhookVerifier interface {
	Check(ctx context.Context, signedToken string, rawBody []byte) error
}

type jobDispatcher interface {
	Dispatch(job dispatch.Job) dispatch.Admission
}

type webhookProcessor interface {
	Process(ctx context.Context, env domain.WebhookEnvelope) error
}

// Handler verifies webhook requests and schedules their processing.
type Handler struct {
	verifier   webhookVerifier
	dispatcher jobDispatcher
	processor  webhookProcessor
	header     string
	log        *slog.Logger
}

// NewHandler constructs a webhook handler. An empty header name selects
// DefaultVerificationHeader.
func NewHandler(verifier webhookVerifier, dispatcher jobDispatcher, processor webhookProcessor, header string, log *slog.Logger) *Handler {
	header = strings.TrimSpace(header)
	if header == "" {
		header = DefaultVerificationHeader
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		verifier:   verifier,
		dispatcher: dispatcher,
		processor:  processor,
		header:     header,
		log:        log,
	}
}

// Handle answers before any aggregator call is made: verified webhooks are
// acknowledged with 202 and processed on the pool.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	token := strings.TrimSpace(r.Header.Get(h.header))
	if token == "" {
		return writeWebhookHTTPError(w, verification.ErrMissingToken)
	}

	body, err := readBody(r.Body)
	if err != nil {
		h.log.WarnContext(ctx, "Webhook body rejected", "error", err)
		return writeWebhookHTTPError(w, err)
	}

	if err := h.verifier.Check(ctx, token, body); err != nil {
		h.log.WarnContext(ctx, "Webhook verification failed", "reason", verification.FailureReason(err), "error", err)
		return writeWebhookHTTPError(w, err)
	}

	var env domain.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.log.ErrorContext(ctx, "Verified webhook is not valid JSON", "error", err)
		return writeWebhookHTTPError(w, errInvalidPayload)
	}

	admission := h.dispatcher.Dispatch(h.job(env))
	h.log.InfoContext(ctx, "Webhook accepted", "kind", env.Kind(), "item_id", env.ItemID, "admission", admission.String())

	w.WriteHeader(http.StatusAccepted)
	return nil
}

func (h *Handler) job(env domain.WebhookEnvelope) dispatch.Job {
	return dispatch.JobFunc{
		Name: "plaid webhook " + env.Kind(),
		Fn: func(ctx context.Context) error {
			err := h.processor.Process(ctx, env)
			if err != nil {
				h.log.ErrorContext(ctx, "Webhook processing failed",
					"kind", env.Kind(),
					"item_id", env.ItemID,
					"class", string(appservices.ClassifyProcessError(err)),
					"error", err,
				)
			}
			return err
		},
	}
}

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, errUnreadableBody
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxPayloadBytes+1))
	if err != nil {
		return nil, errors.Join(errUnreadableBody, err)
	}
	if len(data) > MaxPayloadBytes {
		return nil, errPayloadTooLarge
	}
	return data, nil
}

// writeWebhookHTTPError maps handler failures to the three statuses the
// aggregator can observe. A body that cannot be read in full cannot be
// authenticated, so an oversized payload is a 401 like any verification
// failure; the reason is only logged.
func writeWebhookHTTPError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, errUnreadableBody), errors.Is(err, errInvalidPayload):
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return nil
}
