package db

import (
	"time"

	"github.com/uptrace/bun"
)

// LinkSessionRecord is a row of link_sessions.
type LinkSessionRecord struct {
	bun.BaseModel `bun:"table:link_sessions,alias:ls"`

	ID          string    `bun:"id,pk"`
	RepID       string    `bun:"rep_id,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	LinkToken   string    `bun:"link_token,notnull"`
	AccessToken *string   `bun:"access_token"`
	ItemID      *string   `bun:"item_id"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// RepEmailRecord is a row of rep_emails.
type RepEmailRecord struct {
	bun.BaseModel `bun:"table:rep_emails,alias:re"`

	RepID string `bun:"rep_id,pk"`
	Email string `bun:"email,notnull"`
	Name  string `bun:"name,notnull"`
}

// StatementDeliveryRecord is a row of statement_deliveries.
type StatementDeliveryRecord struct {
	bun.BaseModel `bun:"table:statement_deliveries,alias:sd"`

	SessionID   string    `bun:"session_id,pk"`
	StatementID string    `bun:"statement_id,pk"`
	StorageKey  string    `bun:"storage_key,notnull"`
	DeliveredAt time.Time `bun:"delivered_at,notnull"`
}
