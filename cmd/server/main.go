package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fr0stylo/ledgerlink/internal/adapters/sqlstore"
	plaidclient "github.com/fr0stylo/ledgerlink/internal/aggregator/plaid"
	appservices "github.com/fr0stylo/ledgerlink/internal/app/services"
	"github.com/fr0stylo/ledgerlink/internal/config"
	"github.com/fr0stylo/ledgerlink/internal/db"
	"github.com/fr0stylo/ledgerlink/internal/dispatch"
	sesmail "github.com/fr0stylo/ledgerlink/internal/mail/ses"
	"github.com/fr0stylo/ledgerlink/internal/observability"
	"github.com/fr0stylo/ledgerlink/internal/server"
	"github.com/fr0stylo/ledgerlink/internal/server/routes"
	s3store "github.com/fr0stylo/ledgerlink/internal/storage/s3"
	"github.com/fr0stylo/ledgerlink/internal/verification"
	plaidwebhook "github.com/fr0stylo/ledgerlink/internal/webhooks/plaid"
)

const outboundHTTPTimeout = 2 * time.Minute

func Run() error {
	baseHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := slog.New(observability.WrapSlogHandler(baseHandler))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig{
		Enabled:           cfg.Observability.Enabled,
		OTLPEndpoint:      cfg.Observability.OTLPEndpoint,
		OTLPTraceHeaders:  cfg.Observability.OTLPTraceHeaders,
		OTLPMetricHeaders: cfg.Observability.OTLPMetricHeaders,
		ServiceName:       cfg.Observability.ServiceName,
		ServiceVer:        cfg.Observability.ServiceVer,
		SamplingRatio:     cfg.Observability.SamplingRatio,
		MetricsConsole:    cfg.Observability.MetricsConsole,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	database, err := db.New(db.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	if cfg.Database.LogTiming {
		go database.ReportLatency(ctx, log, time.Minute, 5)
	}

	plaid, err := plaidclient.NewClient(plaidclient.Config{
		ClientID:    cfg.Plaid.ClientID,
		Secret:      cfg.Plaid.Secret,
		Environment: cfg.Plaid.Environment,
		ClientName:  cfg.Plaid.ClientName,
		WebhookURL:  cfg.Plaid.WebhookURL,
		RedirectURI: cfg.Plaid.RedirectURI,
		HTTPClient:  observability.NewHTTPClient(outboundHTTPTimeout),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to configure plaid client: %w", err)
	}

	blobs, err := s3store.New(ctx, s3store.Config{
		Bucket:   cfg.AWS.Bucket,
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.S3Endpoint,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to configure statement storage: %w", err)
	}
	go blobs.Check(ctx)

	mailer, err := sesmail.New(ctx, sesmail.Config{
		From:     cfg.AWS.SESFrom,
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.SESEndpoint,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to configure mailer: %w", err)
	}

	store := sqlstore.New(database)

	keys := verification.NewKeyStore(plaid, verification.KeyStoreConfig{
		Capacity:     cfg.Verification.KeyCacheSize,
		TTL:          cfg.Verification.KeyCacheTTL,
		FetchTimeout: cfg.Timeouts.KeyFetch,
	}, log)
	verifier := verification.NewVerifier(keys, cfg.Verification.MaxAge, log)

	exchanger := appservices.NewTokenExchanger(store, plaid, cfg.Timeouts.Exchange, log)
	pipeline := appservices.NewStatementPipeline(plaid, blobs, store, appservices.PipelineConfig{
		UploadConcurrency: cfg.Delivery.UploadConcurrency,
		ListTimeout:       cfg.Timeouts.StatementList,
		DownloadTimeout:   cfg.Timeouts.StatementDownload,
		UploadTimeout:     cfg.Timeouts.Upload,
	}, log)
	notifier := appservices.NewNotificationDispatcher(store, blobs, mailer, appservices.NotifyConfig{
		InlineThreshold: cfg.Delivery.InlineThreshold,
		LinkExpiry:      cfg.Delivery.LinkExpiry,
		MailTimeout:     cfg.Timeouts.Mail,
	}, log)
	processor := appservices.NewWebhookProcessor(exchanger, pipeline, notifier, store, log)
	links := appservices.NewLinkSessionService(store, plaid, cfg.Timeouts.LinkToken, log)

	pool := dispatch.NewPool(dispatch.Config{
		CoreWorkers: cfg.Pool.CoreWorkers,
		MaxWorkers:  cfg.Pool.MaxWorkers,
		QueueSize:   cfg.Pool.QueueSize,
		KeepAlive:   cfg.Pool.KeepAlive,
		JobTimeout:  cfg.Timeouts.Job,
	}, log)

	srv := server.New(log, server.Config{RawBodyPaths: []string{cfg.Server.WebhookPath}})
	srv.RegisterRouter(routes.NewHealthRoutes(database))
	srv.RegisterRouter(routes.NewLinkRoutes(links))
	srv.RegisterRouter(routes.NewWebhookRoutes(cfg.Server.WebhookPath,
		plaidwebhook.NewHandler(verifier, pool, processor, cfg.Verification.Header, log)))

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("Starting server", "port", cfg.Server.Port, "webhook_path", cfg.Server.WebhookPath, "plaid_env", cfg.Plaid.Environment)
		serverErr <- srv.Start(addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGracePeriod)
	defer cancel()

	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("http shutdown: %w", err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("dispatch pool shutdown: %w", err))
	}
	return shutdownErr
}

func main() {
	if err := Run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

