package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// MarkRead sets read_at once; later calls keep the first value.
func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "mark read", id,
		fmt.Sprintf(`UPDATE %s SET read_at = COALESCE(read_at, ?) WHERE id = ?`, s.opts.table),
		store.Timestamp(at), id)
}

func (s *Store) MarkDeleted(ctx context.Context, id string, party store.Party, at time.Time) error {
	cols, err := deletedColumns(party)
	if err != nil {
		return err
	}
	at = store.Timestamp(at)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = COALESCE(%s, ?)", c, c)
		args = append(args, at)
	}
	args = append(args, id)
	return s.exec(ctx, "mark deleted", id,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, s.opts.table, strings.Join(sets, ", ")), args...)
}

func (s *Store) ClearDeleted(ctx context.Context, id string, party store.Party) error {
	cols, err := deletedColumns(party)
	if err != nil {
		return err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = NULL"
	}
	return s.exec(ctx, "clear deleted", id,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, s.opts.table, strings.Join(sets, ", ")), id)
}

// deletedColumns returns the soft-delete columns owned by party.
func deletedColumns(party store.Party) ([]string, error) {
	var cols []string
	if party.Has(store.PartySender) {
		cols = append(cols, "sender_deleted_at")
	}
	if party.Has(store.PartyRecipient) {
		cols = append(cols, "recipient_deleted_at")
	}
	if len(cols) == 0 {
		return nil, store.ErrInvalidParty
	}
	return cols, nil
}

func (s *Store) exec(ctx context.Context, op, id, query string, args ...any) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if !validID(id) {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
