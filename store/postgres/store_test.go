package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/privmsg/store"
	"github.com/rbaliyan/privmsg/store/storetest"
)

// Set PRIVMSG_TEST_POSTGRES_DSN to run against a live server.
func TestStore(t *testing.T) {
	dsn := os.Getenv("PRIVMSG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRIVMSG_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		table := fmt.Sprintf("messages_test_%d", time.Now().UnixNano())
		s, err := Open(dsn, WithTable(table))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := s.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		t.Cleanup(func() {
			_, _ = s.DB().Exec("DROP TABLE IF EXISTS " + table)
			_ = s.Close(context.Background())
		})
		return s
	})
}

// Nothing listens on port 1; the pools are never used for queries.
const unreachableDSN = "postgres://127.0.0.1:1/privmsg?sslmode=disable&connect_timeout=1"

func isClosed(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is closed")
}

func TestCloseOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("pool from Open is closed", func(t *testing.T) {
		s, err := Open(unreachableDSN)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		// Connect fails, yet Close must still release the pool.
		if err := s.Connect(ctx); err == nil {
			t.Fatal("expected connect error")
		}
		if err := s.Close(ctx); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := s.DB().PingContext(ctx); !isClosed(err) {
			t.Errorf("ping after Close = %v, want closed pool", err)
		}
		if err := s.Close(ctx); err != nil {
			t.Errorf("second Close: %v", err)
		}
	})

	t.Run("pool from New belongs to caller", func(t *testing.T) {
		db, err := sqlx.Open("postgres", unreachableDSN)
		if err != nil {
			t.Fatalf("sqlx.Open: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		s := New(db)
		if err := s.Close(ctx); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := db.PingContext(ctx); isClosed(err) {
			t.Error("Close closed a pool it does not own")
		}
	})
}
