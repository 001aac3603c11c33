package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForLocalDevelopment(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.WebhookPath != "/plaid/webhook" || cfg.Verification.Header != "Plaid-Verification" {
		t.Fatalf("unexpected webhook defaults: %+v %+v", cfg.Server, cfg.Verification)
	}
	if cfg.Pool.CoreWorkers != 10 || cfg.Pool.MaxWorkers != 20 || cfg.Pool.QueueSize != 500 {
		t.Fatalf("unexpected pool defaults: %+v", cfg.Pool)
	}
	if cfg.Verification.KeyCacheSize != 10 || cfg.Verification.KeyCacheTTL != 12*time.Hour || cfg.Verification.MaxAge != 5*time.Minute {
		t.Fatalf("unexpected verification defaults: %+v", cfg.Verification)
	}
	if cfg.Delivery.UploadConcurrency != 8 || cfg.Delivery.InlineThreshold != 5 || cfg.Delivery.LinkExpiry != 24*time.Hour {
		t.Fatalf("unexpected delivery defaults: %+v", cfg.Delivery)
	}
	if cfg.AWS.Bucket != "plaid-bank-statements" || cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected storage defaults: %+v %+v", cfg.AWS, cfg.Database)
	}
	if cfg.Plaid.Environment != "sandbox" || cfg.IsProduction() {
		t.Fatalf("expected sandbox plaid environment, got %q", cfg.Plaid.Environment)
	}
}

func TestLoadRequiresCredentialsOutsideLocal(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "production")
	t.Setenv("PLAID_CLIENT_ID", "")
	t.Setenv("PLAID_SECRET", "")
	t.Setenv("LEDGERLINK_SES_FROM", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing credentials in production")
	}
	for _, key := range []string{"PLAID_CLIENT_ID", "PLAID_SECRET", "LEDGERLINK_SES_FROM"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}

func TestLoadForToolSkipsServiceCredentials(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "production")
	t.Setenv("PLAID_CLIENT_ID", "")
	t.Setenv("PLAID_SECRET", "")
	t.Setenv("LEDGERLINK_SES_FROM", "")
	t.Setenv("LEDGERLINK_DB_PATH", "data/tool")

	cfg, err := LoadForTool()
	if err != nil {
		t.Fatalf("LoadForTool returned error: %v", err)
	}
	if cfg.Database.Path != "data/tool" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
}

func TestLoadAcceptsProductionWithCredentials(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "production")
	t.Setenv("PLAID_CLIENT_ID", "client")
	t.Setenv("PLAID_SECRET", "secret")
	t.Setenv("PLAID_ENV", "Production")
	t.Setenv("LEDGERLINK_SES_FROM", "statements@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production plaid environment")
	}
}

func TestLoadClampsPoolAndDelivery(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "dev")
	t.Setenv("LEDGERLINK_POOL_CORE", "8")
	t.Setenv("LEDGERLINK_POOL_MAX", "2")
	t.Setenv("LEDGERLINK_UPLOAD_CONCURRENCY", "0")
	t.Setenv("LEDGERLINK_LINK_EXPIRY", "30s")
	t.Setenv("LEDGERLINK_WEBHOOK_PATH", "hooks/plaid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Pool.MaxWorkers != 8 {
		t.Fatalf("expected max workers clamped to core, got %d", cfg.Pool.MaxWorkers)
	}
	if cfg.Delivery.UploadConcurrency != 1 {
		t.Fatalf("expected upload concurrency clamped to 1, got %d", cfg.Delivery.UploadConcurrency)
	}
	if cfg.Delivery.LinkExpiry != time.Minute {
		t.Fatalf("expected link expiry clamped to 1m, got %s", cfg.Delivery.LinkExpiry)
	}
	if cfg.Server.WebhookPath != "/hooks/plaid" {
		t.Fatalf("expected leading slash, got %q", cfg.Server.WebhookPath)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "dev")
	t.Setenv("LEDGERLINK_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid port error")
	}

	t.Setenv("LEDGERLINK_PORT", "8080")
	t.Setenv("LEDGERLINK_DB_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid driver error")
	}

	t.Setenv("LEDGERLINK_DB_DRIVER", "postgres")
	t.Setenv("LEDGERLINK_DB_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestLoadParsesOTLPHeadersAndMetricsConsole(t *testing.T) {
	t.Setenv("LEDGERLINK_ENV", "dev")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer common,x-org=abc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_HEADERS", "x-trace=trace-only")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_HEADERS", "x-metric=metric-only")
	t.Setenv("LEDGERLINK_OTEL_METRICS_CONSOLE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Observability.Enabled {
		t.Fatal("expected observability enabled when console metrics is true")
	}
	if !cfg.Observability.MetricsConsole {
		t.Fatal("expected metrics console enabled")
	}
	if cfg.Observability.OTLPTraceHeaders["authorization"] != "Bearer common" {
		t.Fatalf("expected common header to be in trace headers, got %#v", cfg.Observability.OTLPTraceHeaders)
	}
	if cfg.Observability.OTLPTraceHeaders["x-trace"] != "trace-only" {
		t.Fatalf("expected trace-specific header, got %#v", cfg.Observability.OTLPTraceHeaders)
	}
	if cfg.Observability.OTLPMetricHeaders["authorization"] != "Bearer common" {
		t.Fatalf("expected common header to be in metric headers, got %#v", cfg.Observability.OTLPMetricHeaders)
	}
	if cfg.Observability.OTLPMetricHeaders["x-metric"] != "metric-only" {
		t.Fatalf("expected metric-specific header, got %#v", cfg.Observability.OTLPMetricHeaders)
	}
}
