package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

type capturingLinkClient struct {
	inputs []ports.LinkTokenInput
	token  ports.LinkToken
	err    error
}

func (c *capturingLinkClient) CreateLinkToken(_ context.Context, input ports.LinkTokenInput) (ports.LinkToken, error) {
	c.inputs = append(c.inputs, input)
	if c.err != nil {
		return ports.LinkToken{}, c.err
	}
	return c.token, nil
}

func TestLinkSessionService_StartPersistsSession(t *testing.T) {
	t.Parallel()

	store := newMemorySessionStore()
	client := &capturingLinkClient{token: ports.LinkToken{LinkToken: "link-sandbox-1", HostedLinkURL: "https://hosted.plaid.com/link/abc"}}
	svc := NewLinkSessionService(store, client, 0, nil)
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	token, session, err := svc.Start(context.Background(), " rep-7 ")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if token.HostedLinkURL != "https://hosted.plaid.com/link/abc" {
		t.Fatalf("unexpected hosted link %q", token.HostedLinkURL)
	}
	if session.RepID != "rep-7" || session.LinkToken != "link-sandbox-1" || session.Exchanged() {
		t.Fatalf("unexpected session: %+v", session)
	}
	if stored := store.get(session.ID); stored.LinkToken != "link-sandbox-1" {
		t.Fatalf("expected persisted session, got %+v", stored)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected one link token request, got %d", len(client.inputs))
	}
	input := client.inputs[0]
	if !strings.HasPrefix(input.ClientUserID, "rep-7:") || input.ClientUserID != session.UserID {
		t.Fatalf("unexpected client user id %q", input.ClientUserID)
	}
	if !input.StatementsTo.Equal(now) || !input.StatementsFrom.Equal(time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected statements window %s..%s", input.StatementsFrom, input.StatementsTo)
	}
}

func TestLinkSessionService_FreshUserIDPerCall(t *testing.T) {
	t.Parallel()

	client := &capturingLinkClient{token: ports.LinkToken{LinkToken: "link-1", HostedLinkURL: "https://hosted"}}
	svc := NewLinkSessionService(newMemorySessionStore(), client, 0, nil)

	if _, _, err := svc.Start(context.Background(), "rep-1"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, _, err := svc.Start(context.Background(), "rep-1"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if client.inputs[0].ClientUserID == client.inputs[1].ClientUserID {
		t.Fatal("expected distinct client user ids")
	}
}

func TestLinkSessionService_Errors(t *testing.T) {
	t.Parallel()

	svc := NewLinkSessionService(newMemorySessionStore(), &capturingLinkClient{}, 0, nil)
	if _, _, err := svc.Start(context.Background(), ""); !errors.Is(err, ErrMissingRepID) {
		t.Fatalf("expected ErrMissingRepID, got %v", err)
	}

	failing := NewLinkSessionService(newMemorySessionStore(), &capturingLinkClient{err: errors.New("INVALID_API_KEYS")}, 0, nil)
	if _, _, err := failing.Start(context.Background(), "rep-1"); !errors.Is(err, ErrLinkTokenFailed) {
		t.Fatalf("expected ErrLinkTokenFailed, got %v", err)
	}

	incomplete := NewLinkSessionService(newMemorySessionStore(), &capturingLinkClient{token: ports.LinkToken{LinkToken: "link-1"}}, 0, nil)
	if _, _, err := incomplete.Start(context.Background(), "rep-1"); !errors.Is(err, ErrLinkTokenFailed) {
		t.Fatalf("expected ErrLinkTokenFailed for missing hosted link, got %v", err)
	}
}
