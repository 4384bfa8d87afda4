// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rbaliyan/privmsg/store"
)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	messages  sync.Map // map[string]*message
	msgLocks  sync.Map // map[string]*sync.Mutex (per-message locks for mutations)
	connected int32
}

var _ store.Store = (*Store)(nil)

// getMsgLock returns the mutex for a message ID, creating one if needed.
func (s *Store) getMsgLock(id string) *sync.Mutex {
	lock, _ := s.msgLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func (s *Store) load(id string) (*message, bool) {
	v, ok := s.messages.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*message), true
}

// snapshot returns every stored message. Order is unspecified.
func (s *Store) snapshot(filters []store.Filter) []store.Message {
	var all []store.Message
	s.messages.Range(func(_, v any) bool {
		m := v.(*message)
		if store.Matches(m, filters) {
			all = append(all, m.clone())
		}
		return true
	})
	return all
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
