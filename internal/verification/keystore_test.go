package verification

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
)

type countingFetcher struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	key     *ecdsa.PublicKey
	err     error
	failN   int32
}

func (f *countingFetcher) FetchVerificationKey(ctx context.Context, keyID string) (domain.VerificationKey, error) {
	n := f.calls.Add(1)
	if f.entered != nil && n == 1 {
		close(f.entered)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.VerificationKey{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.VerificationKey{}, f.err
	}
	if n <= f.failN {
		return domain.VerificationKey{}, errors.New("transient upstream failure")
	}
	return domain.VerificationKey{KeyID: keyID, Curve: ExpectedCurve, PublicKey: f.key}, nil
}

func testPublicKey(t *testing.T) *ecdsa.PublicKey {
	t.Helper()
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &private.PublicKey
}

func TestKeyStoreCoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		key:     testPublicKey(t),
	}
	store := NewKeyStore(fetcher, KeyStoreConfig{FetchTimeout: 5 * time.Second}, nil)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := store.Get(context.Background(), "kid-1")
			if err != nil {
				errs <- err
				return
			}
			if key.KeyID != "kid-1" {
				errs <- errors.New("unexpected key id " + key.KeyID)
			}
		}()
	}

	<-fetcher.entered
	close(fetcher.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
	if store.Size() != 1 {
		t.Fatalf("expected one cached key, got %d", store.Size())
	}
}

func TestKeyStoreDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{key: testPublicKey(t), failN: 1}
	store := NewKeyStore(fetcher, KeyStoreConfig{}, nil)

	if _, err := store.Get(context.Background(), "kid-1"); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected key unavailable on first fetch, got %v", err)
	}
	key, err := store.Get(context.Background(), "kid-1")
	if err != nil {
		t.Fatalf("expected second fetch to succeed, got %v", err)
	}
	if key.FetchedAt.IsZero() {
		t.Fatal("expected fetched timestamp to be set")
	}
	if _, err := store.Get(context.Background(), "kid-1"); err != nil {
		t.Fatalf("expected cached key, got %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("expected two fetches, got %d", got)
	}
}

func TestKeyStoreRejectsEmptyKeyID(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{key: testPublicKey(t)}
	store := NewKeyStore(fetcher, KeyStoreConfig{}, nil)

	if _, err := store.Get(context.Background(), "  "); !errors.Is(err, ErrMissingKeyID) {
		t.Fatalf("expected missing key id, got %v", err)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatal("expected no fetch for an empty key id")
	}
}

func TestKeyStoreRejectsKeyWithoutMaterial(t *testing.T) {
	t.Parallel()

	store := NewKeyStore(&countingFetcher{}, KeyStoreConfig{}, nil)
	if _, err := store.Get(context.Background(), "kid-1"); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected key unavailable, got %v", err)
	}
	if store.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", store.Size())
	}
}

func TestKeyStoreSharedFetchSurvivesLeaderCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		key:     testPublicKey(t),
	}
	store := NewKeyStore(fetcher, KeyStoreConfig{FetchTimeout: 5 * time.Second}, nil)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = store.Get(leaderCtx, "kid-1")
	}()
	<-fetcher.entered

	followerErr := make(chan error, 1)
	go func() {
		_, err := store.Get(context.Background(), "kid-1")
		followerErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)

	if err := <-followerErr; err != nil {
		t.Fatalf("expected follower with a live context to get the key, got %v", err)
	}
	<-leaderDone
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
	if _, err := store.Get(context.Background(), "kid-1"); err != nil {
		t.Fatalf("expected key to be cached, got %v", err)
	}
}

func TestKeyStoreBoundsCapacity(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{key: testPublicKey(t)}
	store := NewKeyStore(fetcher, KeyStoreConfig{Capacity: 10}, nil)

	for i := 0; i < 25; i++ {
		if _, err := store.Get(context.Background(), fmt.Sprintf("kid-%d", i)); err != nil {
			t.Fatalf("get kid-%d: %v", i, err)
		}
	}
	if got := store.Size(); got == 0 || got > 10 {
		t.Fatalf("expected cache size within capacity 10, got %d", got)
	}
	if got := fetcher.calls.Load(); got != 25 {
		t.Fatalf("expected one fetch per distinct key id, got %d", got)
	}
}

func TestKeyStoreExpiresAfterInsertTTL(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{key: testPublicKey(t)}
	store := NewKeyStore(fetcher, KeyStoreConfig{TTL: 100 * time.Millisecond}, nil)

	if _, err := store.Get(context.Background(), "kid-1"); err != nil {
		t.Fatalf("initial get: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := store.Get(context.Background(), "kid-1"); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected read within ttl to hit the cache, got %d fetches", got)
	}

	// 120ms after insert; the read at 60ms must not have extended the entry.
	time.Sleep(60 * time.Millisecond)
	if _, err := store.Get(context.Background(), "kid-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("expected a refetch once the insert ttl elapsed, got %d fetches", got)
	}
}
