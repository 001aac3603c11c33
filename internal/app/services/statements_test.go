package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

var pipelineDay = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestPipeline(client ports.StatementClient, blobs ports.BlobStore, ledger ports.DeliveryLedger, cfg PipelineConfig) *StatementPipeline {
	p := NewStatementPipeline(client, blobs, ledger, cfg, nil)
	p.now = func() time.Time { return pipelineDay }
	return p
}

func accountsWithStatements(accounts, perAccount int) []ports.StatementAccount {
	out := make([]ports.StatementAccount, 0, accounts)
	for a := 0; a < accounts; a++ {
		account := ports.StatementAccount{AccountID: fmt.Sprintf("acc-%d", a+1)}
		for s := 0; s < perAccount; s++ {
			account.Statements = append(account.Statements, ports.StatementRef{
				StatementID: fmt.Sprintf("stmt-%d-%d", a+1, s+1),
				Month:       s + 1,
				Year:        2026,
			})
		}
		out = append(out, account)
	}
	return out
}

func TestStatementPipeline_UploadsEveryStatement(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{accounts: accountsWithStatements(2, 1)}
	blobs := newMemoryBlobStore()
	pipeline := newTestPipeline(client, blobs, nil, PipelineConfig{})

	result, err := pipeline.Run(context.Background(), exchangedSession("s-1", "rep-1"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Delivered != 2 || result.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if blobs.count() != 2 {
		t.Fatalf("expected 2 stored objects, got %d", blobs.count())
	}

	keyPattern := regexp.MustCompile(`^reps/rep-1/accounts/acc-[12]/statements/2026-03-14_[0-9a-f-]{36}\.pdf$`)
	seen := map[string]bool{}
	for i, key := range result.Keys {
		if !keyPattern.MatchString(key) {
			t.Fatalf("unexpected storage key %q", key)
		}
		if seen[key] {
			t.Fatalf("duplicate storage key %q", key)
		}
		seen[key] = true
		if result.Blobs[i].Key != key {
			t.Fatalf("blob/key order mismatch at %d", i)
		}
		if blobs.types[key] != StatementContentType {
			t.Fatalf("unexpected content type %q", blobs.types[key])
		}
	}
}

func TestStatementPipeline_IsolatesUploadFailures(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{accounts: accountsWithStatements(1, 10)}
	blobs := newMemoryBlobStore()
	blobs.failWhen = func(_ string, data []byte) bool {
		return bytes.HasSuffix(data, []byte("stmt-1-7"))
	}
	pipeline := newTestPipeline(client, blobs, nil, PipelineConfig{UploadConcurrency: 4})

	result, err := pipeline.Run(context.Background(), exchangedSession("s-1", "rep-1"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Delivered != 9 || result.Failed != 1 {
		t.Fatalf("expected 9 delivered and 1 failed, got %+v", result)
	}
	if len(result.Blobs) != 9 || len(result.Keys) != 9 {
		t.Fatalf("expected 9 delivered blobs, got %d/%d", len(result.Blobs), len(result.Keys))
	}
	for _, blob := range result.Blobs {
		if blob.StatementID == "stmt-1-7" {
			t.Fatal("failed upload must not be reported as delivered")
		}
	}
}

func TestStatementPipeline_CountsDownloadFailures(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{
		accounts:     accountsWithStatements(2, 2),
		failDownload: map[string]bool{"stmt-2-1": true},
	}
	pipeline := newTestPipeline(client, newMemoryBlobStore(), nil, PipelineConfig{})

	result, err := pipeline.Run(context.Background(), exchangedSession("s-1", "rep-1"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Delivered != 3 || result.Failed != 1 {
		t.Fatalf("expected 3 delivered and 1 failed, got %+v", result)
	}
	if got := client.downloads.Load(); got != 4 {
		t.Fatalf("expected 4 download attempts, got %d", got)
	}
	if result.Delivered+result.Failed != int(client.downloads.Load()) {
		t.Fatal("delivered plus failed must equal attempted downloads")
	}
}

func TestStatementPipeline_TenDownloadsOneFailing(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{
		accounts:     accountsWithStatements(1, 10),
		failDownload: map[string]bool{"stmt-1-4": true},
	}
	blobs := newMemoryBlobStore()
	pipeline := newTestPipeline(client, blobs, nil, PipelineConfig{UploadConcurrency: 4})

	result, err := pipeline.Run(context.Background(), exchangedSession("s-1", "rep-1"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Delivered != 9 || result.Failed != 1 {
		t.Fatalf("expected 9 delivered and 1 failed, got %+v", result)
	}
	if got := client.downloads.Load(); got != 10 {
		t.Fatalf("expected 10 download attempts, got %d", got)
	}
	if blobs.count() != 9 {
		t.Fatalf("expected 9 stored objects, got %d", blobs.count())
	}
	for _, blob := range result.Blobs {
		if blob.StatementID == "stmt-1-4" {
			t.Fatal("failed download must not be uploaded")
		}
	}
}

func TestStatementPipeline_ListFailureFailsRun(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{listErr: errors.New("PRODUCT_NOT_READY")}
	blobs := newMemoryBlobStore()
	pipeline := newTestPipeline(client, blobs, nil, PipelineConfig{})

	_, err := pipeline.Run(context.Background(), exchangedSession("s-1", "rep-1"))
	if !errors.Is(err, ErrListStatements) {
		t.Fatalf("expected ErrListStatements, got %v", err)
	}
	if blobs.count() != 0 {
		t.Fatal("expected nothing uploaded")
	}
}

func TestStatementPipeline_RequiresCredential(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(&fakeStatementClient{}, newMemoryBlobStore(), nil, PipelineConfig{})
	_, err := pipeline.Run(context.Background(), pendingSession())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestStatementPipeline_SkipsLedgeredStatements(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{accounts: accountsWithStatements(1, 3)}
	blobs := newMemoryBlobStore()
	ledger := newMemoryLedger()
	pipeline := newTestPipeline(client, blobs, ledger, PipelineConfig{})
	session := exchangedSession("s-1", "rep-1")

	first, err := pipeline.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Delivered != 3 {
		t.Fatalf("expected 3 delivered, got %+v", first)
	}

	second, err := pipeline.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Delivered != 0 || second.Failed != 0 {
		t.Fatalf("expected repeat run to deliver nothing, got %+v", second)
	}
	if got := client.downloads.Load(); got != 3 {
		t.Fatalf("expected downloads not to repeat, got %d", got)
	}
	if blobs.count() != 3 {
		t.Fatalf("expected 3 stored objects, got %d", blobs.count())
	}
}

func TestStatementPipeline_BoundsUploadConcurrency(t *testing.T) {
	t.Parallel()

	client := &fakeStatementClient{accounts: accountsWithStatements(3, 4)}
	blobs := newMemoryBlobStore()
	blobs.delay = 10 * time.Millisecond
	pipeline := newTestPipeline(client, blobs, nil, PipelineConfig{UploadConcurrency: 3})

	result, err := pipeline.Run(context.Background(), exchangedSession("s-1", "rep-1"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Delivered != 12 {
		t.Fatalf("expected 12 delivered, got %+v", result)
	}
	if peak := blobs.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 concurrent uploads, got %d", peak)
	}
}

func TestStorageKey(t *testing.T) {
	t.Parallel()

	got := StorageKey("rep-9", "acc-2", pipelineDay, "0f8c")
	if got != "reps/rep-9/accounts/acc-2/statements/2026-03-14_0f8c.pdf" {
		t.Fatalf("unexpected storage key %q", got)
	}
}
