package pebble

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// CreateMessage writes the message and, for a reply, the stamped parent
// in one atomic batch.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	m := &message{
		id:        newID(),
		subject:   data.Subject,
		body:      data.Body,
		sender:    data.Sender,
		recipient: data.Recipient,
		parentID:  data.ParentID,
		sentAt:    store.Timestamp(data.SentAt),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	if m.parentID != "" {
		parent, err := s.load(m.parentID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, store.ErrParentNotFound
			}
			return nil, err
		}
		repliedAt := m.sentAt
		parent.repliedAt = &repliedAt
		b, err := encode(parent)
		if err != nil {
			return nil, err
		}
		if err := batch.Set(msgKey(parent.id), b, nil); err != nil {
			return nil, fmt.Errorf("batch set parent: %w", err)
		}
	}

	b, err := encode(m)
	if err != nil {
		return nil, err
	}
	if err := batch.Set(msgKey(m.id), b, nil); err != nil {
		return nil, fmt.Errorf("batch set message: %w", err)
	}

	if err := batch.Commit(s.writeOptions()); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}
	return m, nil
}

// MarkRead sets read_at unless it is already set.
func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) error {
	at = store.Timestamp(at)
	return s.update(id, func(m *message) {
		if m.readAt == nil {
			m.readAt = &at
		}
	})
}

// MarkDeleted sets the soft-delete markers for party.
func (s *Store) MarkDeleted(ctx context.Context, id string, party store.Party, at time.Time) error {
	if party == 0 {
		return store.ErrInvalidParty
	}
	at = store.Timestamp(at)
	return s.update(id, func(m *message) {
		if party.Has(store.PartySender) && m.senderDeletedAt == nil {
			m.senderDeletedAt = &at
		}
		if party.Has(store.PartyRecipient) && m.recipientDeletedAt == nil {
			m.recipientDeletedAt = &at
		}
	})
}

// ClearDeleted clears the soft-delete markers for party.
func (s *Store) ClearDeleted(ctx context.Context, id string, party store.Party) error {
	if party == 0 {
		return store.ErrInvalidParty
	}
	return s.update(id, func(m *message) {
		if party.Has(store.PartySender) {
			m.senderDeletedAt = nil
		}
		if party.Has(store.PartyRecipient) {
			m.recipientDeletedAt = nil
		}
	})
}

func (s *Store) update(id string, fn func(m *message)) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(id)
	if err != nil {
		return err
	}
	fn(m)

	b, err := encode(m)
	if err != nil {
		return err
	}
	if err := s.db.Set(msgKey(id), b, s.writeOptions()); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}
