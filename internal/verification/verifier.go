package verification

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
)

const (
	// ExpectedAlgorithm is the only accepted token signing algorithm.
	ExpectedAlgorithm = "ES256"
	// ExpectedCurve is the curve every resolved key must use.
	ExpectedCurve = "P-256"
	// DefaultMaxAge is the freshness window applied to the iat claim.
	DefaultMaxAge = 5 * time.Minute
)

// KeyResolver resolves verification keys by key id.
type KeyResolver interface {
	Get(ctx context.Context, keyID string) (domain.VerificationKey, error)
}

type webhookClaims struct {
	IssuedAt          *jwt.NumericDate `json:"iat,omitempty"`
	RequestBodySHA256 string           `json:"request_body_sha256"`
}

// Valid is a no-op; freshness is checked against the verifier clock.
func (webhookClaims) Valid() error { return nil }

// Verifier authenticates signed webhook tokens against the raw request body.
type Verifier struct {
	keys    KeyResolver
	maxAge  time.Duration
	parser  *jwt.Parser
	log     *slog.Logger
	metrics verifierMetrics

	// Now is the clock used for the freshness check.
	Now func() time.Time
}

// NewVerifier constructs a verifier. maxAge <= 0 uses DefaultMaxAge.
func NewVerifier(keys KeyResolver, maxAge time.Duration, log *slog.Logger) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{
		keys:    keys,
		maxAge:  maxAge,
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{ExpectedAlgorithm})),
		log:     log,
		metrics: newVerifierMetrics(),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Verify reports whether signedToken authenticates rawBody. It never panics
// and every failure path returns false.
func (v *Verifier) Verify(ctx context.Context, signedToken string, rawBody []byte) bool {
	if v == nil {
		return false
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "webhook.verify", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	err := v.Check(ctx, signedToken, rawBody)
	reason := FailureReason(err)
	span.SetAttributes(attribute.String("verification.outcome", reason))
	v.metrics.record(ctx, reason)
	if err != nil {
		v.log.DebugContext(ctx, "Webhook verification rejected", "reason", reason, "error", err)
		return false
	}
	return true
}

// Check runs every verification step and returns the first failure.
func (v *Verifier) Check(ctx context.Context, signedToken string, rawBody []byte) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedToken, recovered)
		}
	}()

	signedToken = strings.TrimSpace(signedToken)
	if signedToken == "" {
		return ErrMissingToken
	}

	unverified, _, err := v.parser.ParseUnverified(signedToken, &webhookClaims{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	alg, _ := unverified.Header["alg"].(string)
	if alg != ExpectedAlgorithm {
		return fmt.Errorf("%w: %q", ErrUnexpectedAlgorithm, alg)
	}
	kid, _ := unverified.Header["kid"].(string)
	if strings.TrimSpace(kid) == "" {
		return ErrMissingKeyID
	}

	if v.keys == nil {
		return fmt.Errorf("%w: no key resolver", ErrKeyUnavailable)
	}
	key, err := v.keys.Get(ctx, kid)
	if err != nil {
		if errors.Is(err, ErrKeyUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if !onExpectedCurve(key) {
		return fmt.Errorf("%w: kid %q", ErrCurveMismatch, kid)
	}
	if key.ExpiredAt != nil && !v.now().Before(*key.ExpiredAt) {
		return fmt.Errorf("%w: kid %q expired at %s", ErrKeyExpired, kid, key.ExpiredAt.UTC().Format(time.RFC3339))
	}

	claims := &webhookClaims{}
	if _, err := v.parser.ParseWithClaims(signedToken, claims, func(*jwt.Token) (interface{}, error) {
		return key.PublicKey, nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if claims.IssuedAt == nil {
		return ErrMissingIssuedAt
	}
	if v.now().After(claims.IssuedAt.Time.Add(v.maxAge)) {
		return fmt.Errorf("%w: issued at %s", ErrStaleToken, claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	}

	claimed := strings.ToLower(strings.TrimSpace(claims.RequestBodySHA256))
	if claimed == "" {
		return ErrMissingBodyHash
	}
	if !BodyHashMatches(rawBody, claimed) {
		return ErrBodyHashMismatch
	}

	return nil
}

// BodyHash returns the lowercase hex SHA-256 digest carried in the
// request_body_sha256 claim.
func BodyHash(rawBody []byte) string {
	sum := sha256.Sum256(rawBody)
	return hex.EncodeToString(sum[:])
}

// BodyHashMatches compares the digest of rawBody to claimed in constant time.
func BodyHashMatches(rawBody []byte, claimed string) bool {
	expected := BodyHash(rawBody)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(claimed)) == 1
}

func onExpectedCurve(key domain.VerificationKey) bool {
	if key.PublicKey == nil || key.PublicKey.Curve == nil {
		return false
	}
	if key.Curve != "" && key.Curve != ExpectedCurve {
		return false
	}
	return key.PublicKey.Curve.Params().Name == ExpectedCurve
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

const tracerName = "ledgerlink/verification"

type verifierMetrics struct {
	outcomes metric.Int64Counter
}

func newVerifierMetrics() verifierMetrics {
	meter := otel.Meter("github.com/fr0stylo/ledgerlink/internal/verification")
	outcomes, _ := meter.Int64Counter("ledgerlink.webhook.verifications",
		metric.WithDescription("Webhook verification attempts by outcome"))
	return verifierMetrics{outcomes: outcomes}
}

func (m verifierMetrics) record(ctx context.Context, reason string) {
	if m.outcomes == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", reason)))
}
