// Package sqlite provides a SQLite implementation of store.Store using the
// pure-Go modernc.org/sqlite driver. Timestamps are stored as unix
// milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/privmsg/store"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store on SQLite.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
	ownsDB    bool
}

// New wraps an open SQLite connection. Call Connect() to run migrations.
func New(db *sql.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     sqlx.NewDb(db, "sqlite"),
		opts:   o,
		logger: o.logger,
	}
}

// Open creates or opens the database at path (":memory:" for a private
// in-memory database). The store owns the connection and closes it in Close.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite allows a single writer; one connection also keeps a
	// ":memory:" database alive and shared.
	db.SetMaxOpenConns(1)

	s := New(db, opts...)
	s.ownsDB = true
	return s, nil
}

// Connect applies pragmas and pending migrations.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	// Changing the journal mode fails on some filesystems; fall back to
	// the default journal instead of refusing to start.
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		s.logger.Warn("failed to enable WAL mode, continuing without WAL", "error", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", s.opts.busyTimeout.Milliseconds())); err != nil {
		s.logger.Warn("failed to set busy timeout", "error", err)
	}

	if err := s.migrate(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info("connected to SQLite", "table", s.opts.table)
	return nil
}

// Close marks the store as disconnected and closes the database if it
// was opened by Open.
func (s *Store) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 1, 0) {
		return nil
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// toMillis converts filter values on timestamp columns to their stored form.
func toMillis(key string, v any) any {
	if !store.IsTimeField(key) {
		return v
	}
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UnixMilli()
	}
	return v
}
