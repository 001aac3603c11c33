package plaid

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"
)

func jwkFor(t *testing.T, key *ecdsa.PrivateKey, kid string) JWK {
	t.Helper()

	size := (key.Curve.Params().BitSize + 7) / 8
	x := make([]byte, size)
	y := make([]byte, size)
	key.PublicKey.X.FillBytes(x)
	key.PublicKey.Y.FillBytes(y)
	return JWK{
		KeyID:     kid,
		KeyType:   "EC",
		Curve:     key.Curve.Params().Name,
		X:         base64.RawURLEncoding.EncodeToString(x),
		Y:         base64.RawURLEncoding.EncodeToString(y),
		Algorithm: "ES256",
		Use:       "sig",
		CreatedAt: 1700000000,
	}
}

func TestVerificationKeyFromJWK(t *testing.T) {
	t.Parallel()

	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fetchedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	key, err := VerificationKeyFromJWK(jwkFor(t, private, "kid-1"), fetchedAt)
	if err != nil {
		t.Fatalf("convert jwk: %v", err)
	}
	if key.PublicKey == nil || !key.PublicKey.Equal(&private.PublicKey) {
		t.Fatal("expected decoded public key to match signing key")
	}
	if key.KeyID != "kid-1" || key.Curve != "P-256" || key.Algorithm != "ES256" {
		t.Fatalf("unexpected key metadata: %+v", key)
	}
	if !key.FetchedAt.Equal(fetchedAt) || key.CreatedAt.Unix() != 1700000000 || key.ExpiredAt != nil {
		t.Fatalf("unexpected key timestamps: %+v", key)
	}
}

func TestVerificationKeyFromJWKExpiry(t *testing.T) {
	t.Parallel()

	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jwkFor(t, private, "kid-2")
	expired := int64(1800000000)
	jwk.ExpiredAt = &expired

	key, err := VerificationKeyFromJWK(jwk, time.Now())
	if err != nil {
		t.Fatalf("convert jwk: %v", err)
	}
	if key.ExpiredAt == nil || key.ExpiredAt.Unix() != expired {
		t.Fatalf("expected expiry to be carried, got %v", key.ExpiredAt)
	}
}

func TestVerificationKeyFromJWKRejectsBadCoordinates(t *testing.T) {
	t.Parallel()

	_, err := VerificationKeyFromJWK(JWK{KeyID: "kid-3", Curve: "P-256", X: "not-base64!", Y: "AA"}, time.Now())
	if err == nil {
		t.Fatal("expected malformed coordinates to be rejected")
	}
}
