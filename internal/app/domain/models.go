package domain

import (
	"crypto/ecdsa"
	"strings"
	"time"
)

// Webhook categories and codes handled by the processor.
const (
	WebhookTypeLink       = "LINK"
	WebhookTypeStatements = "STATEMENTS"

	WebhookCodeItemAddResult             = "ITEM_ADD_RESULT"
	WebhookCodeSessionFinished           = "SESSION_FINISHED"
	WebhookCodeStatementsRefreshComplete = "STATEMENTS_REFRESH_COMPLETE"
)

// LinkSession is one bank-linking attempt started for a rep.
type LinkSession struct {
	ID          string
	RepID       string
	UserID      string
	LinkToken   string
	AccessToken *string
	ItemID      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Exchanged reports whether the durable access credential is already present.
func (s LinkSession) Exchanged() bool {
	return s.AccessToken != nil && strings.TrimSpace(*s.AccessToken) != ""
}

// AccessTokenValue returns the access credential or an empty string.
func (s LinkSession) AccessTokenValue() string {
	if s.AccessToken == nil {
		return ""
	}
	return *s.AccessToken
}

// ItemIDValue returns the aggregator item id or an empty string.
func (s LinkSession) ItemIDValue() string {
	if s.ItemID == nil {
		return ""
	}
	return *s.ItemID
}

// VerificationKey is an aggregator webhook signing key resolved by key id.
type VerificationKey struct {
	KeyID     string
	Curve     string
	X         string
	Y         string
	Algorithm string
	PublicKey *ecdsa.PublicKey
	CreatedAt time.Time
	ExpiredAt *time.Time
	FetchedAt time.Time
}

// WebhookError is the optional error object attached to a webhook.
type WebhookError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	DisplayMsg   string `json:"display_message"`
}

// WebhookEnvelope is a verified, parsed aggregator notification.
type WebhookEnvelope struct {
	WebhookType  string        `json:"webhook_type"`
	WebhookCode  string        `json:"webhook_code"`
	LinkToken    string        `json:"link_token"`
	PublicToken  string        `json:"public_token"`
	PublicTokens []string      `json:"public_tokens"`
	ItemID       string        `json:"item_id"`
	Environment  string        `json:"environment"`
	Error        *WebhookError `json:"error"`
}

// ResolvedPublicToken returns the single public token carried by the envelope.
func (e WebhookEnvelope) ResolvedPublicToken() string {
	if token := strings.TrimSpace(e.PublicToken); token != "" {
		return token
	}
	for _, token := range e.PublicTokens {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return ""
}

// Kind returns the "TYPE/CODE" label used in logs and job descriptions.
func (e WebhookEnvelope) Kind() string {
	return strings.ToUpper(strings.TrimSpace(e.WebhookType)) + "/" + strings.ToUpper(strings.TrimSpace(e.WebhookCode))
}

// StatementBlob is one downloaded statement waiting for upload.
type StatementBlob struct {
	Key         string
	AccountID   string
	StatementID string
	Data        []byte
}

// Filename returns the last path segment of the storage key.
func (b StatementBlob) Filename() string {
	if idx := strings.LastIndex(b.Key, "/"); idx >= 0 {
		return b.Key[idx+1:]
	}
	return b.Key
}

// StatementDelivery records one statement already uploaded for a session.
type StatementDelivery struct {
	SessionID   string
	StatementID string
	StorageKey  string
	DeliveredAt time.Time
}

// NotificationRecipient maps a rep to the address statements are mailed to.
type NotificationRecipient struct {
	RepID string
	Email string
	Name  string
}
