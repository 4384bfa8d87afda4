// Package pebble provides an embedded store.Store on top of the
// cockroachdb/pebble key-value engine.
//
// Messages are stored as JSON under "msg:<id>". Queries scan the message
// prefix and evaluate filters in process, which suits single-node
// deployments with modest mailbox sizes.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/rbaliyan/privmsg/store"
)

var _ store.Store = (*Store)(nil)

var msgPrefix = []byte("msg:")

// Store implements store.Store on pebble.
type Store struct {
	path      string
	opts      *options
	logger    *slog.Logger
	db        *pebble.DB
	mu        sync.Mutex // serializes read-modify-write cycles
	connected int32
}

// New creates a store for the database directory at path.
// The database is opened by Connect and closed by Close.
func New(path string, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		path:   path,
		opts:   o,
		logger: o.logger,
	}
}

// Connect opens the database.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	pebbleOpts := &pebble.Options{}
	if s.opts.fs != nil {
		pebbleOpts.FS = s.opts.fs
	}
	db, err := pebble.Open(s.path, pebbleOpts)
	if err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("pebble open %s: %w", s.path, err)
	}
	s.db = db

	s.logger.Info("opened pebble store", "path", s.path)
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 1, 0) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pebble close: %w", err)
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func (s *Store) writeOptions() *pebble.WriteOptions {
	if s.opts.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func msgKey(id string) []byte {
	return append(append([]byte{}, msgPrefix...), id...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store) load(id string) (*message, error) {
	v, closer, err := s.db.Get(msgKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	var doc messageDoc
	if err := json.Unmarshal(v, &doc); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	return doc.toMessage(), nil
}

func encode(m *message) ([]byte, error) {
	b, err := json.Marshal(fromMessage(m))
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", m.id, err)
	}
	return b, nil
}

// scan visits every stored message in key order.
func (s *Store) scan(fn func(m *message) error) error {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: msgPrefix,
		UpperBound: prefixEnd(msgPrefix),
	})
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		var doc messageDoc
		if err := json.Unmarshal(it.Value(), &doc); err != nil {
			return fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		if err := fn(doc.toMessage()); err != nil {
			return err
		}
	}
	return it.Error()
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
