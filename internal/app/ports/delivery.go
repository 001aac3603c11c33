package ports

import (
	"context"
	"time"
)

// BlobStore is durable object storage for statement files.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Attachment is one inline e-mail attachment.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StatementLink is one expiring download link.
type StatementLink struct {
	URL       string
	ExpiresIn time.Duration
}

// Mailer sends statement notifications.
type Mailer interface {
	SendWithAttachments(ctx context.Context, to, repID string, attachments []Attachment) error
	SendWithLinks(ctx context.Context, to, repID string, links []StatementLink) error
}
