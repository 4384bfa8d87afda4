package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rbaliyan/privmsg/store"
)

// CreateMessage inserts the message and, for a reply, stamps the parent's
// replied_at inside the same transaction.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := &message{
		id:        newID(),
		subject:   data.Subject,
		body:      data.Body,
		sender:    data.Sender,
		recipient: data.Recipient,
		parentID:  data.ParentID,
		sentAt:    store.Timestamp(data.SentAt),
	}
	sentAt := m.sentAt.UnixMilli()

	if m.parentID != "" {
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET replied_at = ? WHERE id = ?`, s.opts.table), sentAt, m.parentID)
		if err != nil {
			return nil, fmt.Errorf("update parent: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil, store.ErrParentNotFound
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, subject, body, sender_type, sender_id, recipient_type, recipient_id,
		                parent_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.opts.table),
		m.id, m.subject, m.body, m.sender.Type, m.sender.ID, m.recipient.Type, m.recipient.ID,
		sql.NullString{String: m.parentID, Valid: m.parentID != ""}, sentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}
	return m, nil
}
