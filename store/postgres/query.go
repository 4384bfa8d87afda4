package postgres

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
	if !validID(id) {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, sqlbuild.Columns, s.opts.table))

	var r row
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
	if opts.StartAfter != "" && !validID(opts.StartAfter) {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args, err := sqlbuild.Where(filters, sqlbuild.Identity)
	if err != nil {
		return nil, err
	}

	var total int64
	countQuery := s.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.opts.table, where))
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	query, pageArgs := sqlbuild.Page(s.opts.table, where, args, opts)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), pageArgs...); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	return sqlbuild.Trim(toMessages(rows), total, opts), nil
}

func (s *Store) Count(ctx context.Context, filters []store.Filter) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args, err := sqlbuild.Where(filters, sqlbuild.Identity)
	if err != nil {
		return 0, err
	}

	var count int64
	query := s.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.opts.table, where))
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// MailboxStats computes every folder count with one conditional aggregation.
func (s *Store) MailboxStats(ctx context.Context, owner store.PrincipalRef) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var st store.MailboxStats
	query := s.db.Rebind(sqlbuild.Stats(s.opts.table))
	err := s.db.QueryRowContext(ctx, query, sqlbuild.StatsArgs(owner)...).
		Scan(&st.Inbox, &st.Unread, &st.Outbox, &st.Trash)
	if err != nil {
		return nil, fmt.Errorf("mailbox stats: %w", err)
	}
	return &st, nil
}
