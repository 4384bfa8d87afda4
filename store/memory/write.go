package memory

import (
	"context"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// update applies fn to a clone of the message under its per-message lock
// and stores the result (copy-on-write).
func (s *Store) update(id string, fn func(m *message)) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	lock := s.getMsgLock(id)
	lock.Lock()
	defer lock.Unlock()

	orig, ok := s.load(id)
	if !ok {
		return store.ErrNotFound
	}

	m := orig.clone()
	fn(m)
	s.messages.Store(id, m)
	return nil
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
