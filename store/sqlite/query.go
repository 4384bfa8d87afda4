package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rbaliyan/privmsg/store"
	"github.com/rbaliyan/privmsg/store/internal/sqlbuild"
)

func (s *Store) Get(ctx context.Context, id string) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var r row
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, sqlbuild.Columns, s.opts.table)
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return r.toMessage(), nil
}

func (s *Store) Find(ctx context.Context, filters []store.Filter, opts store.ListOptions) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args, err := sqlbuild.Where(filters, toMillis)
	if err != nil {
		return nil, err
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.opts.table, where)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	if opts.StartAfter != "" {
		// Keep the memory store's contract: an unknown cursor yields an empty page.
		var n int
		if err := s.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, s.opts.table), opts.StartAfter); err != nil {
			return nil, fmt.Errorf("check cursor: %w", err)
		}
		if n == 0 {
			return &store.MessageList{Total: total}, nil
		}
	}

	query, pageArgs := sqlbuild.Page(s.opts.table, where, args, opts)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, pageArgs...); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	msgs := make([]store.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toMessage()
	}
	return sqlbuild.Trim(msgs, total, opts), nil
}

func (s *Store) Count(ctx context.Context, filters []store.Filter) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args, err := sqlbuild.Where(filters, toMillis)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.GetContext(ctx, &count, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.opts.table, where), args...); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

func (s *Store) MailboxStats(ctx context.Context, owner store.PrincipalRef) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var st store.MailboxStats
	err := s.db.QueryRowContext(ctx, sqlbuild.Stats(s.opts.table), sqlbuild.StatsArgs(owner)...).
		Scan(&st.Inbox, &st.Unread, &st.Outbox, &st.Trash)
	if err != nil {
		return nil, fmt.Errorf("mailbox stats: %w", err)
	}
	return &st, nil
}
