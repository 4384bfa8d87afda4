// Package store provides interfaces and types for private message storage.
// Implementations live in the store/memory, store/sqlite, store/postgres,
// store/mongo and store/pebble subpackages.
//
// # Atomicity without locks
//
// Every multi-step write is expressed as a single database-level atomic
// operation rather than coordinated through external locks:
//
//  1. Creating a reply inserts the new row and stamps the parent's
//     replied_at inside one transaction (SQL transaction, MongoDB
//     session, pebble batch). If the parent does not exist, nothing is
//     written and ErrParentNotFound is returned.
//
//  2. Read marking is a conditional update (read_at = COALESCE(read_at, $t)),
//     so concurrent readers cannot move read_at once it is set.
//
//  3. Soft delete only ever writes the caller's own *_deleted_at column,
//     so the two parties of a message never contend on the same field.
//
// Concurrent replies to the same parent race on replied_at and the last
// write wins.
package store

import (
	"context"
	"time"
)

// Store is the storage interface for private messages.
//
// All operations must be safe for concurrent use. Messages are never
// hard-deleted through this interface.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	MessageStore

	// Stats operations - aggregate per-principal counts
	StatsStore
}

// MessageStoreReader provides read operations for messages.
type MessageStoreReader interface {
	// Get retrieves a message by ID.
	// Returns ErrNotFound if the message doesn't exist.
	Get(ctx context.Context, id string) (Message, error)

	// Find retrieves messages matching the filters, ordered by (sent_at, id).
	Find(ctx context.Context, filters []Filter, opts ListOptions) (*MessageList, error)

	// Count returns the count of messages matching the filters.
	Count(ctx context.Context, filters []Filter) (int64, error)
}

// MessageStoreMutator provides mutation operations for messages.
// Mutations are specific operations, not general setters.
type MessageStoreMutator interface {
	// MarkRead sets read_at to at unless it is already set.
	// Returns ErrNotFound if the message doesn't exist.
	MarkRead(ctx context.Context, id string, at time.Time) error

	// MarkDeleted sets the soft-delete marker of each side in party to at.
	// Markers that are already set keep their original time.
	MarkDeleted(ctx context.Context, id string, party Party, at time.Time) error

	// ClearDeleted clears the soft-delete marker of each side in party.
	ClearDeleted(ctx context.Context, id string, party Party) error
}

// MessageStoreCreator provides message creation.
type MessageStoreCreator interface {
	// CreateMessage inserts a message. When data.ParentID is set, the
	// parent's replied_at is set to data.SentAt in the same atomic unit;
	// a missing parent aborts the whole operation with ErrParentNotFound.
	CreateMessage(ctx context.Context, data MessageData) (Message, error)
}

// MessageStore provides operations for stored messages.
type MessageStore interface {
	MessageStoreReader
	MessageStoreMutator
	MessageStoreCreator
}
