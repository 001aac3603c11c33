package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.LinkSession
	// beforeSet runs inside SetCredentials before the conditional write.
	beforeSet func(s *domain.LinkSession)
	setCalls  int
}

func newMemorySessionStore(sessions ...domain.LinkSession) *memorySessionStore {
	store := &memorySessionStore{sessions: map[string]domain.LinkSession{}}
	for _, session := range sessions {
		store.sessions[session.ID] = session
	}
	return store
}

func (m *memorySessionStore) CreateSession(_ context.Context, session domain.LinkSession) (domain.LinkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return session, nil
}

func (m *memorySessionStore) GetSessionByLinkToken(_ context.Context, linkToken string) (domain.LinkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.LinkToken == linkToken {
			return session, nil
		}
	}
	return domain.LinkSession{}, ports.ErrNotFound
}

func (m *memorySessionStore) GetSessionByItemID(_ context.Context, itemID string) (domain.LinkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.ItemIDValue() == itemID {
			return session, nil
		}
	}
	return domain.LinkSession{}, ports.ErrNotFound
}

func (m *memorySessionStore) SetCredentials(_ context.Context, sessionID, accessToken, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	session, ok := m.sessions[sessionID]
	if !ok {
		return false, ports.ErrNotFound
	}
	if m.beforeSet != nil {
		m.beforeSet(&session)
		m.sessions[sessionID] = session
	}
	if session.AccessToken != nil {
		return false, nil
	}
	session.AccessToken = &accessToken
	session.ItemID = &itemID
	m.sessions[sessionID] = session
	return true, nil
}

func (m *memorySessionStore) get(id string) domain.LinkSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

type fakeStatementClient struct {
	accounts     []ports.StatementAccount
	listErr      error
	failDownload map[string]bool
	downloads    atomic.Int32
}

func (f *fakeStatementClient) ListStatements(context.Context, string) ([]ports.StatementAccount, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.accounts, nil
}

func (f *fakeStatementClient) DownloadStatement(_ context.Context, _ string, statementID string) ([]byte, error) {
	f.downloads.Add(1)
	if f.failDownload[statementID] {
		return nil, errors.New("download failed")
	}
	return []byte("%PDF-" + statementID), nil
}

type memoryBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	failWhen func(key string, data []byte) bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryBlobStore) Put(_ context.Context, key, contentType string, data []byte) error {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.peak.Load()
		if current <= peak || m.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.failWhen != nil && m.failWhen(key, data) {
		return errors.New("storage unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryBlobStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if strings.Contains(key, "unsignable") {
		return "", errors.New("presign failed")
	}
	return "https://signed.example.com/" + key, nil
}

func (m *memoryBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type memoryRecipientStore map[string]domain.NotificationRecipient

func (m memoryRecipientStore) GetRecipient(_ context.Context, repID string) (domain.NotificationRecipient, error) {
	recipient, ok := m[repID]
	if !ok {
		return domain.NotificationRecipient{}, ports.ErrNotFound
	}
	return recipient, nil
}

type memoryLedger struct {
	mu        sync.Mutex
	delivered map[string]map[string]struct{}
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{delivered: map[string]map[string]struct{}{}}
}

func (m *memoryLedger) ListDeliveredStatementIDs(_ context.Context, sessionID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for id := range m.delivered[sessionID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *memoryLedger) RecordDeliveries(_ context.Context, deliveries []domain.StatementDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range deliveries {
		if m.delivered[d.SessionID] == nil {
			m.delivered[d.SessionID] = map[string]struct{}{}
		}
		m.delivered[d.SessionID][d.StatementID] = struct{}{}
	}
	return nil
}

func strPtr(v string) *string { return &v }

func exchangedSession(id, repID string) domain.LinkSession {
	return domain.LinkSession{
		ID:          id,
		RepID:       repID,
		LinkToken:   "lt_" + id,
		AccessToken: strPtr("access-" + id),
		ItemID:      strPtr("item-" + id),
	}
}
