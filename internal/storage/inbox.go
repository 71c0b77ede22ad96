package storage

import (
	"context"
	"database/sql"
	"errors"

	"supplymatch/internal"
)

const (
	InboxFetched   = "fetched"
	InboxProcessed = "processed"
	InboxSkipped   = "skipped"
	InboxFailed    = "failed"
)

func (d *DB) UpsertInboxMessage(ctx context.Context, provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.InboxMessage, error) {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO inbox_messages (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.InboxMessage{}, err
	}

	row, err := d.GetInboxMessageByProviderID(ctx, provider, messageID)
	if err != nil {
		return internal.InboxMessage{}, err
	}
	if row == nil {
		return internal.InboxMessage{}, errors.New("failed to upsert inbox message")
	}
	return *row, nil
}

func (d *DB) GetInboxMessageByProviderID(ctx context.Context, provider, messageID string) (*internal.InboxMessage, error) {
	var row internal.InboxMessage
	err := d.conn.QueryRowContext(ctx, `
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM inbox_messages WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListInboxByStatus(ctx context.Context, status string, limit int) ([]internal.InboxMessage, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM inbox_messages WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.InboxMessage
	for rows.Next() {
		var row internal.InboxMessage
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateInboxStatus(ctx context.Context, id int, status string) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE inbox_messages SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}
