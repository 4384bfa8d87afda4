package pebble

import (
	"context"
	"errors"

	"github.com/rbaliyan/privmsg/store"
)

func (s *Store) Get(ctx context.Context, id string) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	return s.load(id)
}

func (s *Store) Find(ctx context.Context, filters []store.Filter, opts store.ListOptions) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	var cursor store.Message
	if opts.StartAfter != "" {
		m, err := s.load(opts.StartAfter)
		switch {
		case err == nil:
			cursor = m
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	var all []store.Message
	err := s.scan(func(m *message) error {
		if store.Matches(m, filters) {
			all = append(all, m)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	store.SortMessages(all, opts.SortOrder)
	return store.Paginate(all, opts, cursor), nil
}

func (s *Store) Count(ctx context.Context, filters []store.Filter) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	var n int64
	err := s.scan(func(m *message) error {
		if store.Matches(m, filters) {
			n++
		}
		return ctx.Err()
	})
	return n, err
}

func (s *Store) MailboxStats(ctx context.Context, owner store.PrincipalRef) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	stats := &store.MailboxStats{}
	err := s.scan(func(m *message) error {
		stats.Tally(m, owner)
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
