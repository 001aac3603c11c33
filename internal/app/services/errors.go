package services

import "errors"

var (
	// ErrUnknownSession indicates no link session matches the webhook.
	ErrUnknownSession = errors.New("unknown link session")
	// ErrExchangeFailed indicates the aggregator rejected the token exchange.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrMissingPublicToken indicates a link webhook without a public token.
	ErrMissingPublicToken = errors.New("missing public token")
	// ErrMissingCredential indicates a session without an access credential.
	ErrMissingCredential = errors.New("session has no access credential")
	// ErrListStatements indicates the statement listing call failed.
	ErrListStatements = errors.New("statement listing failed")
	// ErrMissingRepID indicates a link request without a rep id.
	ErrMissingRepID = errors.New("missing rep id")
	// ErrLinkTokenFailed indicates link token creation failed.
	ErrLinkTokenFailed = errors.New("link token creation failed")
)

// ProcessErrorKind classifies processing failures for logs and transport mapping.
type ProcessErrorKind string

const (
	// ProcessErrorUnknown is used when error is nil or not classified.
	ProcessErrorUnknown ProcessErrorKind = "unknown"
	// ProcessErrorUnknownSession indicates the session lookup missed.
	ProcessErrorUnknownSession ProcessErrorKind = "unknown_session"
	// ProcessErrorExchange indicates the public token exchange failed.
	ProcessErrorExchange ProcessErrorKind = "exchange_failed"
	// ProcessErrorInvalidInput indicates missing tokens or ids.
	ProcessErrorInvalidInput ProcessErrorKind = "invalid_input"
	// ProcessErrorListStatements indicates statement listing failed.
	ProcessErrorListStatements ProcessErrorKind = "list_statements"
	// ProcessErrorLinkToken indicates link token creation failed.
	ProcessErrorLinkToken ProcessErrorKind = "link_token"
)

// ClassifyProcessError classifies a returned service error.
func ClassifyProcessError(err error) ProcessErrorKind {
	switch {
	case err == nil:
		return ProcessErrorUnknown
	case errors.Is(err, ErrUnknownSession):
		return ProcessErrorUnknownSession
	case errors.Is(err, ErrExchangeFailed):
		return ProcessErrorExchange
	case errors.Is(err, ErrMissingPublicToken), errors.Is(err, ErrMissingCredential), errors.Is(err, ErrMissingRepID):
		return ProcessErrorInvalidInput
	case errors.Is(err, ErrListStatements):
		return ProcessErrorListStatements
	case errors.Is(err, ErrLinkTokenFailed):
		return ProcessErrorLinkToken
	default:
		return ProcessErrorUnknown
	}
}
