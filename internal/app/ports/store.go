package ports

import (
	"context"
	"errors"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
)

// ErrNotFound is returned by stores when no row matches.
var ErrNotFound = errors.New("not found")

// SessionStore persists link sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.LinkSession) (domain.LinkSession, error)
	GetSessionByLinkToken(ctx context.Context, linkToken string) (domain.LinkSession, error)
	GetSessionByItemID(ctx context.Context, itemID string) (domain.LinkSession, error)
	// SetCredentials stores the access credential and item id only when no
	// credential is present yet. It reports whether this call performed the write.
	SetCredentials(ctx context.Context, sessionID, accessToken, itemID string) (bool, error)
}

// RecipientStore resolves rep notification addresses.
type RecipientStore interface {
	GetRecipient(ctx context.Context, repID string) (domain.NotificationRecipient, error)
}

// DeliveryLedger records statements already uploaded per session.
type DeliveryLedger interface {
	ListDeliveredStatementIDs(ctx context.Context, sessionID string) (map[string]struct{}, error)
	RecordDeliveries(ctx context.Context, deliveries []domain.StatementDelivery) error
}
