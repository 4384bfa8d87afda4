package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rbaliyan/privmsg/store"
)

// CreateMessage inserts the message and, for a reply, stamps the parent's
// replied_at inside the same transaction.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if data.ParentID != "" && !validID(data.ParentID) {
		return nil, store.ErrParentNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := &message{
		id:        uuid.Must(uuid.NewV7()).String(),
		subject:   data.Subject,
		body:      data.Body,
		sender:    data.Sender,
		recipient: data.Recipient,
		parentID:  data.ParentID,
		sentAt:    store.Timestamp(data.SentAt),
	}

	if m.parentID != "" {
		// Stamp the parent first: the row lock it takes serializes
		// concurrent replies and proves the parent exists.
		update := tx.Rebind(fmt.Sprintf(`UPDATE %s SET replied_at = ? WHERE id = ?`, s.opts.table))
		result, err := tx.ExecContext(ctx, update, m.sentAt, m.parentID)
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

	insert := tx.Rebind(fmt.Sprintf(`
		INSERT INTO %s (id, subject, body, sender_type, sender_id, recipient_type, recipient_id,
		                parent_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.opts.table))

	_, err = tx.ExecContext(ctx, insert,
		m.id, m.subject, m.body, m.sender.Type, m.sender.ID, m.recipient.Type, m.recipient.ID,
		nullString(m.parentID), m.sentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}

	return m, nil
}
