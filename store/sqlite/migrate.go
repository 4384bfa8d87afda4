package sqlite

import (
	"context"
	"fmt"
)

type migration struct {
	name  string
	stmts []string
}

// migrations are applied in order and recorded per table, so several
// message tables can share one database file.
func (s *Store) migrations() []migration {
	t := s.opts.table
	return []migration{
		{
			name:  "create messages table",
			stmts: []string{fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %[1]s (
					id TEXT PRIMARY KEY,
					subject TEXT NOT NULL,
					body TEXT NOT NULL,
					sender_type TEXT NOT NULL,
					sender_id INTEGER NOT NULL,
					recipient_type TEXT NOT NULL,
					recipient_id INTEGER NOT NULL,
					parent_id TEXT REFERENCES %[1]s(id),
					sent_at INTEGER NOT NULL,
					read_at INTEGER,
					replied_at INTEGER,
					sender_deleted_at INTEGER,
					recipient_deleted_at INTEGER
				)`, t)},
		},
		{
			name:  "add folder indexes",
			stmts: []string{
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_recipient ON %[1]s(recipient_type, recipient_id, sent_at)`, t),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_sender ON %[1]s(sender_type, sender_id, sent_at)`, t),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_parent ON %[1]s(parent_id) WHERE parent_id IS NOT NULL`, t),
			},
		},
	}
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for i, m := range s.migrations() {
		version := fmt.Sprintf("%s/%d", s.opts.table, i+1)

		var count int
		if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		s.logger.Info("running migration", "version", version, "name", m.name)
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %s (%s): %w", version, m.name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}
	return nil
}
