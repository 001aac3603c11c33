package verification

import "errors"

var (
	// ErrMissingToken indicates an empty verification header.
	ErrMissingToken = errors.New("missing verification token")
	// ErrMalformedToken indicates the token could not be parsed.
	ErrMalformedToken = errors.New("malformed verification token")
	// ErrUnexpectedAlgorithm indicates a header algorithm other than ES256.
	ErrUnexpectedAlgorithm = errors.New("unexpected signing algorithm")
	// ErrMissingKeyID indicates the token header carries no key id.
	ErrMissingKeyID = errors.New("missing key id")
	// ErrKeyUnavailable indicates the signing key could not be resolved.
	ErrKeyUnavailable = errors.New("verification key unavailable")
	// ErrCurveMismatch indicates the resolved key is not on the expected curve.
	ErrCurveMismatch = errors.New("verification key curve mismatch")
	// ErrKeyExpired indicates the aggregator has retired the resolved key.
	ErrKeyExpired = errors.New("verification key expired")
	// ErrInvalidSignature indicates the token signature did not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrMissingIssuedAt indicates the token has no iat claim.
	ErrMissingIssuedAt = errors.New("missing issued-at claim")
	// ErrStaleToken indicates the token is older than the freshness window.
	ErrStaleToken = errors.New("stale verification token")
	// ErrMissingBodyHash indicates the token has no body hash claim.
	ErrMissingBodyHash = errors.New("missing body hash claim")
	// ErrBodyHashMismatch indicates the body does not match the signed hash.
	ErrBodyHashMismatch = errors.New("body hash mismatch")
)

// FailureReason maps a verification error to a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrUnexpectedAlgorithm):
		return "algorithm"
	case errors.Is(err, ErrMissingKeyID):
		return "missing_kid"
	case errors.Is(err, ErrKeyUnavailable):
		return "key_unavailable"
	case errors.Is(err, ErrCurveMismatch):
		return "curve"
	case errors.Is(err, ErrKeyExpired):
		return "key_expired"
	case errors.Is(err, ErrInvalidSignature):
		return "signature"
	case errors.Is(err, ErrMissingIssuedAt):
		return "missing_iat"
	case errors.Is(err, ErrStaleToken):
		return "stale"
	case errors.Is(err, ErrMissingBodyHash):
		return "missing_body_hash"
	case errors.Is(err, ErrBodyHashMismatch):
		return "body_hash"
	default:
		return "unknown"
	}
}
