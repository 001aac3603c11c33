package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertLinkSession stores a new link session.
func (c *Database) InsertLinkSession(ctx context.Context, record LinkSessionRecord) error {
	ctx = withQueryName(ctx, "insert_link_session")
	_, err := c.bun.NewInsert().Model(&record).Exec(ctx)
	return err
}

// GetLinkSessionByLinkToken fetches a session by link token. It returns
// sql.ErrNoRows when none matches.
func (c *Database) GetLinkSessionByLinkToken(ctx context.Context, linkToken string) (LinkSessionRecord, error) {
	ctx = withQueryName(ctx, "get_link_session_by_link_token")
	var record LinkSessionRecord
	err := c.bun.NewSelect().
		Model(&record).
		Where("?TableAlias.link_token = ?", strings.TrimSpace(linkToken)).
		Limit(1).
		Scan(ctx)
	return record, err
}

// GetLinkSessionByItemID fetches the most recent session for an item id.
func (c *Database) GetLinkSessionByItemID(ctx context.Context, itemID string) (LinkSessionRecord, error) {
	ctx = withQueryName(ctx, "get_link_session_by_item_id")
	var record LinkSessionRecord
	err := c.bun.NewSelect().
		Model(&record).
		Where("?TableAlias.item_id = ?", strings.TrimSpace(itemID)).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	return record, err
}

// SetLinkSessionCredentials stores the access credential unless one is
// already present. It reports whether the row was updated.
func (c *Database) SetLinkSessionCredentials(ctx context.Context, sessionID, accessToken, itemID string, now time.Time) (bool, error) {
	ctx = withQueryName(ctx, "set_link_session_credentials")
	res, err := c.bun.NewUpdate().
		Model((*LinkSessionRecord)(nil)).
		Set("access_token = ?", accessToken).
		Set("item_id = ?", itemID).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", sessionID).
		Where("access_token IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// GetRepEmail fetches the notification address of a rep.
func (c *Database) GetRepEmail(ctx context.Context, repID string) (RepEmailRecord, error) {
	ctx = withQueryName(ctx, "get_rep_email")
	var record RepEmailRecord
	err := c.bun.NewSelect().
		Model(&record).
		Where("?TableAlias.rep_id = ?", strings.TrimSpace(repID)).
		Limit(1).
		Scan(ctx)
	return record, err
}

// UpsertRepEmail inserts or replaces a rep's notification address.
func (c *Database) UpsertRepEmail(ctx context.Context, record RepEmailRecord) error {
	ctx = withQueryName(ctx, "upsert_rep_email")
	_, err := c.bun.NewInsert().
		Model(&record).
		On("CONFLICT (rep_id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	return err
}

// ListDeliveredStatementIDs returns the statement ids already stored for a session.
func (c *Database) ListDeliveredStatementIDs(ctx context.Context, sessionID string) ([]string, error) {
	ctx = withQueryName(ctx, "list_delivered_statement_ids")
	var ids []string
	err := c.bun.NewSelect().
		Model((*StatementDeliveryRecord)(nil)).
		Column("statement_id").
		Where("?TableAlias.session_id = ?", sessionID).
		Scan(ctx, &ids)
	return ids, err
}

// InsertStatementDeliveries records uploaded statements, ignoring duplicates.
func (c *Database) InsertStatementDeliveries(ctx context.Context, records []StatementDeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx = withQueryName(ctx, "insert_statement_deliveries")
	_, err := c.bun.NewInsert().
		Model(&records).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}
