package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

const (
	statementsLookbackMonths = 4
	defaultLinkTokenTimeout  = 10 * time.Second
)

// LinkSessionService starts hosted bank-link sessions for reps.
type LinkSessionService struct {
	sessions ports.SessionStore
	client   ports.LinkTokenClient
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewLinkSessionService constructs a link session service.
func NewLinkSessionService(sessions ports.SessionStore, client ports.LinkTokenClient, timeout time.Duration, log *slog.Logger) *LinkSessionService {
	if timeout <= 0 {
		timeout = defaultLinkTokenTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &LinkSessionService{
		sessions: sessions,
		client:   client,
		timeout:  timeout,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Start creates a link token for repID and persists the pending session.
// Each call uses a fresh client user id so repeated links never collide.
func (s *LinkSessionService) Start(ctx context.Context, repID string) (ports.LinkToken, domain.LinkSession, error) {
	repID = strings.TrimSpace(repID)
	if repID == "" {
		return ports.LinkToken{}, domain.LinkSession{}, ErrMissingRepID
	}

	now := s.now()
	clientUserID := repID + ":" + s.newID()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	token, err := s.client.CreateLinkToken(callCtx, ports.LinkTokenInput{
		ClientUserID:   clientUserID,
		StatementsFrom: now.AddDate(0, -statementsLookbackMonths, 0),
		StatementsTo:   now,
	})
	cancel()
	if err != nil {
		return ports.LinkToken{}, domain.LinkSession{}, fmt.Errorf("%w: %v", ErrLinkTokenFailed, err)
	}
	if strings.TrimSpace(token.LinkToken) == "" || strings.TrimSpace(token.HostedLinkURL) == "" {
		return ports.LinkToken{}, domain.LinkSession{}, fmt.Errorf("%w: incomplete link token response", ErrLinkTokenFailed)
	}

	session, err := s.sessions.CreateSession(ctx, domain.LinkSession{
		ID:        s.newID(),
		RepID:     repID,
		UserID:    clientUserID,
		LinkToken: token.LinkToken,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return ports.LinkToken{}, domain.LinkSession{}, fmt.Errorf("persist link session: %w", err)
	}

	s.log.InfoContext(ctx, "Link session started", "session_id", session.ID, "rep_id", repID)
	return token, session, nil
}
