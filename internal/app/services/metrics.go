package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "ledgerlink/services"

type deliveryMetrics struct {
	exchanges     metric.Int64Counter
	statements    metric.Int64Counter
	notifications metric.Int64Counter
	webhooks      metric.Int64Counter
}

func newDeliveryMetrics() deliveryMetrics {
	meter := otel.Meter("github.com/fr0stylo/ledgerlink/internal/app/services")
	exchanges, _ := meter.Int64Counter("ledgerlink.exchange.attempts")
	statements, _ := meter.Int64Counter("ledgerlink.statements.processed")
	notifications, _ := meter.Int64Counter("ledgerlink.notifications.sent")
	webhooks, _ := meter.Int64Counter("ledgerlink.webhooks.processed")
	return deliveryMetrics{
		exchanges:     exchanges,
		statements:    statements,
		notifications: notifications,
		webhooks:      webhooks,
	}
}

func (m deliveryMetrics) recordExchange(ctx context.Context, outcome string) {
	if m.exchanges == nil {
		return
	}
	m.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m deliveryMetrics) recordStatements(ctx context.Context, outcome string, n int) {
	if m.statements == nil || n == 0 {
		return
	}
	m.statements.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m deliveryMetrics) recordNotification(ctx context.Context, strategy Strategy, outcome string) {
	if m.notifications == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.String("outcome", outcome),
	))
}

func (m deliveryMetrics) recordWebhook(ctx context.Context, kind, outcome string) {
	if m.webhooks == nil {
		return
	}
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
