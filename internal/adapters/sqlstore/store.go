package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
	"github.com/fr0stylo/ledgerlink/internal/db"
)

type ledgerDatabase interface {
	InsertLinkSession(ctx context.Context, record db.LinkSessionRecord) error
	GetLinkSessionByLinkToken(ctx context.Context, linkToken string) (db.LinkSessionRecord, error)
	GetLinkSessionByItemID(ctx context.Context, itemID string) (db.LinkSessionRecord, error)
	SetLinkSessionCredentials(ctx context.Context, sessionID, accessToken, itemID string, now time.Time) (bool, error)
	GetRepEmail(ctx context.Context, repID string) (db.RepEmailRecord, error)
	UpsertRepEmail(ctx context.Context, record db.RepEmailRecord) error
	ListDeliveredStatementIDs(ctx context.Context, sessionID string) ([]string, error)
	InsertStatementDeliveries(ctx context.Context, records []db.StatementDeliveryRecord) error
}

// Store backs sessions, recipients and the delivery ledger with the shared database.
type Store struct {
	db  ledgerDatabase
	now func() time.Time
}

// New creates a store over an open database handle. The caller owns the handle.
func New(database *db.Database) *Store {
	return newStore(database)
}

func newStore(database ledgerDatabase) *Store {
	return &Store{db: database, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) CreateSession(ctx context.Context, session domain.LinkSession) (domain.LinkSession, error) {
	now := s.now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	if err := s.db.InsertLinkSession(ctx, db.LinkSessionRecord{
		ID:          session.ID,
		RepID:       session.RepID,
		UserID:      session.UserID,
		LinkToken:   session.LinkToken,
		AccessToken: session.AccessToken,
		ItemID:      session.ItemID,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}); err != nil {
		return domain.LinkSession{}, err
	}
	return session, nil
}

func (s *Store) GetSessionByLinkToken(ctx context.Context, linkToken string) (domain.LinkSession, error) {
	record, err := s.db.GetLinkSessionByLinkToken(ctx, linkToken)
	if err != nil {
		return domain.LinkSession{}, mapNotFound(err)
	}
	return toSession(record), nil
}

func (s *Store) GetSessionByItemID(ctx context.Context, itemID string) (domain.LinkSession, error) {
	record, err := s.db.GetLinkSessionByItemID(ctx, itemID)
	if err != nil {
		return domain.LinkSession{}, mapNotFound(err)
	}
	return toSession(record), nil
}

func (s *Store) SetCredentials(ctx context.Context, sessionID, accessToken, itemID string) (bool, error) {
	return s.db.SetLinkSessionCredentials(ctx, sessionID, accessToken, itemID, s.now())
}

func (s *Store) GetRecipient(ctx context.Context, repID string) (domain.NotificationRecipient, error) {
	record, err := s.db.GetRepEmail(ctx, repID)
	if err != nil {
		return domain.NotificationRecipient{}, mapNotFound(err)
	}
	return domain.NotificationRecipient{RepID: record.RepID, Email: record.Email, Name: record.Name}, nil
}

// SaveRecipient creates or replaces the notification address for a rep.
func (s *Store) SaveRecipient(ctx context.Context, recipient domain.NotificationRecipient) error {
	repID := strings.TrimSpace(recipient.RepID)
	email := strings.TrimSpace(recipient.Email)
	if repID == "" || email == "" {
		return errors.New("sqlstore: rep id and email are required")
	}
	return s.db.UpsertRepEmail(ctx, db.RepEmailRecord{
		RepID: repID,
		Email: email,
		Name:  strings.TrimSpace(recipient.Name),
	})
}

func (s *Store) ListDeliveredStatementIDs(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	ids, err := s.db.ListDeliveredStatementIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	delivered := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		delivered[id] = struct{}{}
	}
	return delivered, nil
}

func (s *Store) RecordDeliveries(ctx context.Context, deliveries []domain.StatementDelivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	records := make([]db.StatementDeliveryRecord, 0, len(deliveries))
	for _, delivery := range deliveries {
		deliveredAt := delivery.DeliveredAt
		if deliveredAt.IsZero() {
			deliveredAt = s.now()
		}
		records = append(records, db.StatementDeliveryRecord{
			SessionID:   delivery.SessionID,
			StatementID: delivery.StatementID,
			StorageKey:  delivery.StorageKey,
			DeliveredAt: deliveredAt,
		})
	}
	return s.db.InsertStatementDeliveries(ctx, records)
}

func toSession(record db.LinkSessionRecord) domain.LinkSession {
	return domain.LinkSession{
		ID:          record.ID,
		RepID:       record.RepID,
		UserID:      record.UserID,
		LinkToken:   record.LinkToken,
		AccessToken: record.AccessToken,
		ItemID:      record.ItemID,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	return err
}

var (
	_ ports.SessionStore   = (*Store)(nil)
	_ ports.RecipientStore = (*Store)(nil)
	_ ports.DeliveryLedger = (*Store)(nil)
)
