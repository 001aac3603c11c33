package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

const (
	defaultKeyCacheCapacity = 10
	defaultKeyCacheTTL      = 12 * time.Hour
	defaultKeyFetchTimeout  = 5 * time.Second
)

// KeyStoreConfig bounds the verification key cache.
type KeyStoreConfig struct {
	Capacity     int
	TTL          time.Duration
	FetchTimeout time.Duration
}

// KeyStore caches aggregator verification keys by key id. Concurrent misses
// for the same key id share one outbound fetch; failed fetches are not cached.
type KeyStore struct {
	fetcher      ports.KeyFetcher
	cache        *sturdyc.Client[domain.VerificationKey]
	fetchTimeout time.Duration
	now          func() time.Time
	log          *slog.Logger
}

// NewKeyStore constructs a key store backed by fetcher.
func NewKeyStore(fetcher ports.KeyFetcher, cfg KeyStoreConfig, log *slog.Logger) *KeyStore {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultKeyCacheCapacity
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultKeyCacheTTL
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultKeyFetchTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	// A single shard keeps the capacity exact; evicting 10% of ten entries
	// drops one key at a time.
	cache := sturdyc.New[domain.VerificationKey](capacity, 1, ttl, 10)

	return &KeyStore{
		fetcher:      fetcher,
		cache:        cache,
		fetchTimeout: timeout,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// Get returns the key for keyID, fetching it on a cache miss.
func (s *KeyStore) Get(ctx context.Context, keyID string) (domain.VerificationKey, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return domain.VerificationKey{}, ErrMissingKeyID
	}
	if s == nil || s.fetcher == nil {
		return domain.VerificationKey{}, errors.New("verification: key store is not configured")
	}

	key, err := s.cache.GetOrFetch(ctx, keyID, func(ctx context.Context) (domain.VerificationKey, error) {
		return s.fetch(ctx, keyID)
	})
	if err != nil {
		return domain.VerificationKey{}, err
	}
	return key, nil
}

// Size returns the number of cached keys.
func (s *KeyStore) Size() int {
	if s == nil || s.cache == nil {
		return 0
	}
	return s.cache.Size()
}

// fetch is shared by every caller waiting on keyID and outlives the request
// that started it; only the fetch timeout bounds it.
func (s *KeyStore) fetch(ctx context.Context, keyID string) (domain.VerificationKey, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	start := time.Now()
	key, err := s.fetcher.FetchVerificationKey(fetchCtx, keyID)
	if err != nil {
		s.log.WarnContext(ctx, "Verification key fetch failed", "kid", keyID, "error", err, "duration", time.Since(start))
		return domain.VerificationKey{}, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if key.PublicKey == nil {
		return domain.VerificationKey{}, fmt.Errorf("%w: key %q has no public key material", ErrKeyUnavailable, keyID)
	}
	if key.KeyID == "" {
		key.KeyID = keyID
	}
	if key.FetchedAt.IsZero() {
		key.FetchedAt = s.now()
	}
	s.log.InfoContext(ctx, "Verification key fetched", "kid", keyID, "curve", key.Curve, "duration", time.Since(start))
	return key, nil
}
