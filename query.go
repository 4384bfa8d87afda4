package privmsg

import (
	"context"
	"time"

	"github.com/rbaliyan/privmsg/store"
	"go.opentelemetry.io/otel/attribute"
)

// Get retrieves a message the caller sent or received. Soft-deleted
// messages are still returned to their parties.
func (m *userMailbox) Get(ctx context.Context, id string) (Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "privmsg.get",
		attribute.String("principal", m.ref.String()),
		attribute.String("message_id", id),
	)
	start := time.Now()
	var getErr error
	defer func() {
		endSpan(getErr)
		m.service.otel.recordGet(ctx, time.Since(start), getErr)
	}()

	msg, _, err := m.load(ctx, id)
	if err != nil {
		getErr = err
		return nil, err
	}
	return newMessage(msg, m), nil
}

// Read opens a message. When the caller is the recipient and the message
// is unread, read_at is set first and the returned snapshot reflects it.
func (m *userMailbox) Read(ctx context.Context, id string) (Message, error) {
	msg, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.Party().Has(store.PartyRecipient) || !msg.IsNew() {
		return msg, nil
	}
	if err := m.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return m.Get(ctx, id)
}

// Inbox returns received messages the caller has not deleted.
func (m *userMailbox) Inbox(ctx context.Context, opts ListOptions) (MessageList, error) {
	return m.listFolder(ctx, FolderInbox, opts)
}

// Outbox returns sent messages the caller has not deleted.
func (m *userMailbox) Outbox(ctx context.Context, opts ListOptions) (MessageList, error) {
	return m.listFolder(ctx, FolderOutbox, opts)
}

// Trash returns messages the caller deleted from either side.
func (m *userMailbox) Trash(ctx context.Context, opts ListOptions) (MessageList, error) {
	return m.listFolder(ctx, FolderTrash, opts)
}

func (m *userMailbox) listFolder(ctx context.Context, folder Folder, opts ListOptions) (MessageList, error) {
	return m.listWithOTel(ctx, string(folder), opts, func() ([]store.Filter, error) {
		return store.FolderFilters(m.ref, folder)
	})
}

// Replies returns the direct replies to id, oldest first by default.
// Only a party of id may list them.
func (m *userMailbox) Replies(ctx context.Context, id string, opts ListOptions) (MessageList, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if _, _, err := m.load(ctx, id); err != nil {
		return nil, err
	}
	return m.listWithOTel(ctx, "replies", opts, func() ([]store.Filter, error) {
		return []store.Filter{store.ParentIs(id)}, nil
	})
}

// listWithOTel runs a Find with the query limits applied and records
// span and metrics.
func (m *userMailbox) listWithOTel(ctx context.Context, folder string, opts ListOptions, getFilters func() ([]store.Filter, error)) (MessageList, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "privmsg.list",
		attribute.String("principal", m.ref.String()),
		attribute.String("folder", folder),
	)
	start := time.Now()
	var listErr error
	var resultCount int
	defer func() {
		endSpan(listErr)
		m.service.otel.recordList(ctx, time.Since(start), folder, resultCount, listErr)
	}()

	filters, err := getFilters()
	if err != nil {
		listErr = wrapStoreError("list "+folder, err)
		return nil, listErr
	}

	opts = m.service.clampListOptions(opts)
	list, err := m.service.store.Find(ctx, filters, opts)
	if err != nil {
		listErr = wrapStoreError("list "+folder, err)
		return nil, listErr
	}
	resultCount = len(list.Messages)

	return wrapMessageList(list, m), nil
}

// clampListOptions applies the default and maximum page sizes.
func (s *service) clampListOptions(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = s.opts.defaultQueryLimit
	}
	if opts.Limit > s.opts.maxQueryLimit {
		opts.Limit = s.opts.maxQueryLimit
	}
	return opts
}
