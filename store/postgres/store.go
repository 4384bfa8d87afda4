// Package postgres provides a PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rbaliyan/privmsg/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
	ownsDB    bool
	closed    int32
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Open connects to dsn with the lib/pq driver. The store owns the pool
// and closes it in Close, after which it cannot be reconnected.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	s := New(db, opts...)
	s.ownsDB = true
	return s, nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB { return s.db }

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL", "table", s.opts.table)
	return nil
}

// Close marks the store as disconnected. A pool created by Open is closed
// once, even if Connect never succeeded; pools passed to New belong to the
// caller.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	if s.ownsDB && atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return s.db.Close()
	}
	return nil
}

// ensureSchema creates the required table and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	t := s.opts.table
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			subject VARCHAR(%d) NOT NULL,
			body TEXT NOT NULL,
			sender_type VARCHAR(64) NOT NULL,
			sender_id BIGINT NOT NULL,
			recipient_type VARCHAR(64) NOT NULL,
			recipient_id BIGINT NOT NULL,
			parent_id UUID REFERENCES %s(id),
			sent_at TIMESTAMPTZ NOT NULL,
			read_at TIMESTAMPTZ,
			replied_at TIMESTAMPTZ,
			sender_deleted_at TIMESTAMPTZ,
			recipient_deleted_at TIMESTAMPTZ
		)
	`, t, s.opts.subjectColumnSize, t)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_recipient ON %s(recipient_type, recipient_id, sent_at)`, t, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_sender ON %s(sender_type, sender_id, sent_at)`, t, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s(parent_id) WHERE parent_id IS NOT NULL`, t, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_unread ON %s(recipient_type, recipient_id)
			WHERE read_at IS NULL AND recipient_deleted_at IS NULL`, t, t),
	}

	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
