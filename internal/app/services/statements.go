package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

// StatementContentType is the media type of stored statements.
const StatementContentType = "application/pdf"

const (
	defaultUploadConcurrency = 8
	defaultListTimeout       = 30 * time.Second
	defaultDownloadTimeout   = 60 * time.Second
	defaultUploadTimeout     = 60 * time.Second
	storageKeyDateLayout     = "2006-01-02"
)

// PipelineConfig bounds statement retrieval and upload.
type PipelineConfig struct {
	UploadConcurrency int
	ListTimeout       time.Duration
	DownloadTimeout   time.Duration
	UploadTimeout     time.Duration
}

// PipelineResult summarizes one pipeline run. Delivered plus Failed equals
// the number of statements whose download was attempted.
type PipelineResult struct {
	Delivered int
	Failed    int
	// Blobs holds the successfully uploaded statements.
	Blobs []domain.StatementBlob
	// Keys holds the storage keys of Blobs, in the same order.
	Keys []string
}

// StatementPipeline lists, downloads and stores the statements of an
// exchanged link session.
type StatementPipeline struct {
	statements ports.StatementClient
	blobs      ports.BlobStore
	ledger     ports.DeliveryLedger
	cfg        PipelineConfig
	log        *slog.Logger
	metrics    deliveryMetrics
	now        func() time.Time
	newID      func() string
}

// NewStatementPipeline constructs a pipeline. ledger may be nil, in which
// case every listed statement is processed on each run.
func NewStatementPipeline(statements ports.StatementClient, blobs ports.BlobStore, ledger ports.DeliveryLedger, cfg PipelineConfig, log *slog.Logger) *StatementPipeline {
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultUploadConcurrency
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = defaultListTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &StatementPipeline{
		statements: statements,
		blobs:      blobs,
		ledger:     ledger,
		cfg:        cfg,
		log:        log,
		metrics:    newDeliveryMetrics(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// StorageKey builds the object key for one statement.
func StorageKey(repID, accountID string, day time.Time, id string) string {
	return fmt.Sprintf("reps/%s/accounts/%s/statements/%s_%s.pdf", repID, accountID, day.Format(storageKeyDateLayout), id)
}

// Run processes every statement available for session. Only a listing
// failure fails the whole run; individual download or upload failures
// are logged and counted.
func (p *StatementPipeline) Run(ctx context.Context, session domain.LinkSession) (PipelineResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statements.run",
		trace.WithAttributes(attribute.String("session.id", session.ID), attribute.String("rep.id", session.RepID)))
	defer span.End()

	if !session.Exchanged() {
		return PipelineResult{}, fmt.Errorf("%w: session %s", ErrMissingCredential, session.ID)
	}
	accessToken := session.AccessTokenValue()

	listCtx, cancel := context.WithTimeout(ctx, p.cfg.ListTimeout)
	accounts, err := p.statements.ListStatements(listCtx, accessToken)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list statements failed")
		return PipelineResult{}, fmt.Errorf("%w: %v", ErrListStatements, err)
	}

	delivered := p.deliveredStatements(ctx, session.ID)
	day := p.now()

	var (
		pending []domain.StatementBlob
		failed  int
	)
	for _, account := range accounts {
		for _, ref := range account.Statements {
			if _, done := delivered[ref.StatementID]; done {
				p.log.DebugContext(ctx, "Statement already delivered", "session_id", session.ID, "statement_id", ref.StatementID)
				continue
			}
			data, err := p.download(ctx, accessToken, ref.StatementID)
			if err != nil {
				failed++
				p.log.WarnContext(ctx, "Statement download failed", "session_id", session.ID, "account_id", account.AccountID, "statement_id", ref.StatementID, "error", err)
				continue
			}
			pending = append(pending, domain.StatementBlob{
				Key:         StorageKey(session.RepID, account.AccountID, day, p.newID()),
				AccountID:   account.AccountID,
				StatementID: ref.StatementID,
				Data:        data,
			})
		}
	}

	uploaded := p.upload(ctx, pending)

	result := PipelineResult{Failed: failed}
	deliveries := make([]domain.StatementDelivery, 0, len(pending))
	for i, blob := range pending {
		if !uploaded[i] {
			result.Failed++
			continue
		}
		result.Delivered++
		result.Blobs = append(result.Blobs, blob)
		result.Keys = append(result.Keys, blob.Key)
		deliveries = append(deliveries, domain.StatementDelivery{
			SessionID:   session.ID,
			StatementID: blob.StatementID,
			StorageKey:  blob.Key,
			DeliveredAt: day,
		})
	}
	p.recordDeliveries(ctx, deliveries)

	p.metrics.recordStatements(ctx, "delivered", result.Delivered)
	p.metrics.recordStatements(ctx, "failed", result.Failed)
	span.SetAttributes(attribute.Int("statements.delivered", result.Delivered), attribute.Int("statements.failed", result.Failed))
	p.log.InfoContext(ctx, "Statement pipeline finished", "session_id", session.ID, "rep_id", session.RepID, "delivered", result.Delivered, "failed", result.Failed)
	return result, nil
}

func (p *StatementPipeline) download(ctx context.Context, accessToken, statementID string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()
	data, err := p.statements.DownloadStatement(callCtx, accessToken, statementID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("statement %s is empty", statementID)
	}
	return data, nil
}

// upload stores blobs concurrently and reports per-index success.
func (p *StatementPipeline) upload(ctx context.Context, blobs []domain.StatementBlob) []bool {
	ok := make([]bool, len(blobs))
	if len(blobs) == 0 {
		return ok
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.UploadConcurrency)
	for i, blob := range blobs {
		g.Go(func() error {
			uploadCtx, span := otel.Tracer(tracerName).Start(ctx, "statements.upload",
				trace.WithAttributes(attribute.String("storage.key", blob.Key), attribute.Int("statement.bytes", len(blob.Data))))
			defer span.End()

			uploadCtx, cancel := context.WithTimeout(uploadCtx, p.cfg.UploadTimeout)
			defer cancel()
			if err := p.blobs.Put(uploadCtx, blob.Key, StatementContentType, blob.Data); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "upload failed")
				p.log.WarnContext(ctx, "Statement upload failed", "key", blob.Key, "statement_id", blob.StatementID, "error", err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()
	return ok
}

func (p *StatementPipeline) deliveredStatements(ctx context.Context, sessionID string) map[string]struct{} {
	if p.ledger == nil {
		return nil
	}
	ids, err := p.ledger.ListDeliveredStatementIDs(ctx, sessionID)
	if err != nil {
		p.log.WarnContext(ctx, "Delivery ledger unavailable, processing all statements", "session_id", sessionID, "error", err)
		return nil
	}
	return ids
}

func (p *StatementPipeline) recordDeliveries(ctx context.Context, deliveries []domain.StatementDelivery) {
	if p.ledger == nil || len(deliveries) == 0 {
		return
	}
	if err := p.ledger.RecordDeliveries(ctx, deliveries); err != nil {
		p.log.ErrorContext(ctx, "Recording statement deliveries failed", "count", len(deliveries), "error", err)
	}
}
