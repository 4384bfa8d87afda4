package memory

import (
	"context"

	"github.com/rbaliyan/privmsg/store"
)

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	m, ok := s.load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.clone(), nil
}

// Find retrieves messages matching the filters.
func (s *Store) Find(ctx context.Context, filters []store.Filter, opts store.ListOptions) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	var cursor store.Message
	if opts.StartAfter != "" {
		if m, ok := s.load(opts.StartAfter); ok {
			cursor = m
		}
	}

	all := s.snapshot(filters)
	store.SortMessages(all, opts.SortOrder)
	return store.Paginate(all, opts, cursor), nil
}

// Count returns the count of messages matching the filters.
func (s *Store) Count(ctx context.Context, filters []store.Filter) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	var count int64
	s.messages.Range(func(_, v any) bool {
		if store.Matches(v.(*message), filters) {
			count++
		}
		return true
	})
	return count, nil
}

// MailboxStats returns folder counts for owner.
func (s *Store) MailboxStats(ctx context.Context, owner store.PrincipalRef) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	stats := &store.MailboxStats{}
	s.messages.Range(func(_, v any) bool {
		stats.Tally(v.(*message), owner)
		return true
	})
	return stats, nil
}
