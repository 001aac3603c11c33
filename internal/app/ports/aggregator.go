package ports

import (
	"context"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
)

// KeyFetcher resolves a webhook verification key by key id.
type KeyFetcher interface {
	FetchVerificationKey(ctx context.Context, keyID string) (domain.VerificationKey, error)
}

// TokenExchange is the result of exchanging a public token.
type TokenExchange struct {
	AccessToken string
	ItemID      string
}

// TokenExchangeClient exchanges a short-lived public token for an access credential.
type TokenExchangeClient interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (TokenExchange, error)
}

// StatementRef identifies one downloadable statement.
type StatementRef struct {
	StatementID string
	Month       int
	Year        int
}

// StatementAccount groups the statements available for one account.
type StatementAccount struct {
	AccountID   string
	AccountName string
	Statements  []StatementRef
}

// StatementClient lists and downloads statements for an access credential.
type StatementClient interface {
	ListStatements(ctx context.Context, accessToken string) ([]StatementAccount, error)
	DownloadStatement(ctx context.Context, accessToken, statementID string) ([]byte, error)
}

// LinkTokenInput configures a hosted link session.
type LinkTokenInput struct {
	ClientUserID   string
	StatementsFrom time.Time
	StatementsTo   time.Time
}

// LinkToken is a created link session handle.
type LinkToken struct {
	LinkToken     string
	HostedLinkURL string
	Expiration    time.Time
}

// LinkTokenClient creates link tokens.
type LinkTokenClient interface {
	CreateLinkToken(ctx context.Context, input LinkTokenInput) (LinkToken, error)
}
