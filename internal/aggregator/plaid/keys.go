package plaid

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
)

// JWK is the subset of an aggregator signing key needed to build a verifier.
type JWK struct {
	KeyID     string
	KeyType   string
	Curve     string
	X         string
	Y         string
	Algorithm string
	Use       string
	CreatedAt int64
	ExpiredAt *int64
}

var errNotECKey = errors.New("verification key is not an EC public key")

// VerificationKeyFromJWK decodes the JWK coordinates into an ECDSA public key.
func VerificationKeyFromJWK(jwk JWK, fetchedAt time.Time) (domain.VerificationKey, error) {
	raw, err := json.Marshal(map[string]string{
		"kty": firstNonEmpty(jwk.KeyType, "EC"),
		"crv": jwk.Curve,
		"x":   jwk.X,
		"y":   jwk.Y,
		"kid": jwk.KeyID,
		"alg": jwk.Algorithm,
		"use": jwk.Use,
	})
	if err != nil {
		return domain.VerificationKey{}, err
	}

	var webKey jose.JSONWebKey
	if err := webKey.UnmarshalJSON(raw); err != nil {
		return domain.VerificationKey{}, fmt.Errorf("decode jwk %q: %w", jwk.KeyID, err)
	}
	publicKey, ok := webKey.Key.(*ecdsa.PublicKey)
	if !ok {
		return domain.VerificationKey{}, fmt.Errorf("%w: kid %q", errNotECKey, jwk.KeyID)
	}

	key := domain.VerificationKey{
		KeyID:     jwk.KeyID,
		Curve:     jwk.Curve,
		X:         jwk.X,
		Y:         jwk.Y,
		Algorithm: jwk.Algorithm,
		PublicKey: publicKey,
		FetchedAt: fetchedAt,
	}
	if jwk.CreatedAt > 0 {
		key.CreatedAt = time.Unix(jwk.CreatedAt, 0).UTC()
	}
	if jwk.ExpiredAt != nil && *jwk.ExpiredAt > 0 {
		expired := time.Unix(*jwk.ExpiredAt, 0).UTC()
		key.ExpiredAt = &expired
	}
	return key, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
