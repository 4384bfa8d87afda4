package privmsg

import (
	"context"
	"errors"

	"github.com/rbaliyan/privmsg/store"
)

// ErrIteratorOutOfBounds is returned when Message() is called without a successful Next().
var ErrIteratorOutOfBounds = errors.New("privmsg: iterator out of bounds - call Next() first")

// MessageIterator streams a folder in batches.
//
// Use it instead of Inbox/Outbox/Trash when processing a whole folder:
// batches are fetched with keyset pagination (StartAfter), so messages
// added while iterating do not shift the remaining pages.
//
//	iter, _ := mb.Stream(ctx, privmsg.FolderInbox, privmsg.StreamOptions{BatchSize: 100})
//	for {
//	    ok, err := iter.Next(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    msg, _ := iter.Message()
//	    // ...
//	}
//
// The iterator holds no resources and needs no Close. It is not safe for
// concurrent use.
type MessageIterator interface {
	// Next advances to the next message.
	// Returns (false, nil) when iteration is done.
	Next(ctx context.Context) (bool, error)

	// Message returns the current message.
	// Returns ErrIteratorOutOfBounds before the first Next or after the end.
	Message() (Message, error)
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	// BatchSize is the number of messages fetched per batch. Default: 100.
	BatchSize int
	// SortOrder defaults to ascending sent_at.
	SortOrder SortOrder
}

// batchIterator pages through Find results with a keyset cursor.
type batchIterator struct {
	mailbox  *userMailbox
	filters  []store.Filter
	opts     store.ListOptions
	batch    []store.Message
	batchIdx int
	done     bool
	fetched  bool
}

var _ MessageIterator = (*batchIterator)(nil)

func newBatchIterator(m *userMailbox, filters []store.Filter, streamOpts StreamOptions) *batchIterator {
	batchSize := streamOpts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &batchIterator{
		mailbox: m,
		filters: filters,
		opts: store.ListOptions{
			Limit:     batchSize,
			SortOrder: streamOpts.SortOrder,
		},
	}
}

func (it *batchIterator) Next(ctx context.Context) (bool, error) {
	if it.done {
		return false, nil
	}

	// The service may be closed between batches.
	if err := it.mailbox.checkAccess(); err != nil {
		it.done = true
		return false, err
	}

	if it.batchIdx >= len(it.batch) {
		if it.fetched && len(it.batch) < it.opts.Limit {
			it.done = true
			return false, nil
		}

		list, err := it.mailbox.service.store.Find(ctx, it.filters, it.opts)
		if err != nil {
			it.done = true
			return false, wrapStoreError("stream", err)
		}

		it.batch = list.Messages
		it.batchIdx = 0
		it.fetched = true

		if len(it.batch) == 0 {
			it.done = true
			return false, nil
		}
		it.opts.StartAfter = it.batch[len(it.batch)-1].GetID()
	}

	it.batchIdx++
	return true, nil
}

func (it *batchIterator) Message() (Message, error) {
	if it.batchIdx <= 0 || it.batchIdx > len(it.batch) {
		return nil, ErrIteratorOutOfBounds
	}
	return newMessage(it.batch[it.batchIdx-1], it.mailbox), nil
}

// Stream returns an iterator over one of the caller's folders.
func (m *userMailbox) Stream(ctx context.Context, folder Folder, opts StreamOptions) (MessageIterator, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	filters, err := store.FolderFilters(m.ref, folder)
	if err != nil {
		return nil, wrapStoreError("stream", err)
	}
	return newBatchIterator(m, filters, opts), nil
}
