package privmsg

import (
	"context"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// Type aliases for commonly used store types.
// These allow users to work with the privmsg package without importing store directly.
type (
	ListOptions  = store.ListOptions
	SortOrder    = store.SortOrder
	Folder       = store.Folder
	MailboxStats = store.MailboxStats
)

// Re-exported store constants.
const (
	SortAsc  = store.SortAsc
	SortDesc = store.SortDesc

	FolderInbox  = store.FolderInbox
	FolderOutbox = store.FolderOutbox
	FolderTrash  = store.FolderTrash
)

// MessageMutator provides the caller-scoped operations on one message.
type MessageMutator interface {
	// MarkRead sets read_at if the caller is the recipient and it is unset.
	MarkRead(ctx context.Context) error
	// Delete soft-deletes the message from the caller's view.
	Delete(ctx context.Context) error
	// Restore clears the caller's soft-delete marker.
	Restore(ctx context.Context) error
	// Reply sends a reply to the other party.
	Reply(ctx context.Context, form ComposeForm) (Message, error)
	// Replies lists the direct replies to this message.
	Replies(ctx context.Context, opts ListOptions) (MessageList, error)
}

// Message is a stored message seen from one principal's mailbox.
//
// It is a snapshot taken at retrieval time. After mutations, getters may
// return stale values; call Mailbox.Get again for fresh state.
type Message interface {
	store.Message
	MessageMutator

	// IsNew reports whether the recipient has not read the message.
	IsNew() bool
	// IsReplied reports whether a reply exists.
	IsReplied() bool
	// Party reports the side(s) the viewing principal occupies.
	Party() store.Party
	// Clone returns an independent copy of the snapshot.
	Clone() Message
}

// message wraps a store.Message with mailbox operations.
// Access is verified by the caller before wrapping.
type message struct {
	store.Message
	mailbox *userMailbox
}

var _ Message = (*message)(nil)

func newMessage(msg store.Message, m *userMailbox) *message {
	return &message{Message: msg, mailbox: m}
}

func (m *message) IsNew() bool        { return store.IsNew(m.Message) }
func (m *message) IsReplied() bool    { return store.IsReplied(m.Message) }
func (m *message) Party() store.Party { return store.PartyOf(m.Message, m.mailbox.ref) }

func (m *message) Clone() Message {
	return &message{Message: snapshotOf(m.Message), mailbox: m.mailbox}
}

func (m *message) MarkRead(ctx context.Context) error {
	return m.mailbox.MarkRead(ctx, m.GetID())
}

func (m *message) Delete(ctx context.Context) error {
	return m.mailbox.Delete(ctx, m.GetID())
}

func (m *message) Restore(ctx context.Context) error {
	return m.mailbox.Restore(ctx, m.GetID())
}

func (m *message) Reply(ctx context.Context, form ComposeForm) (Message, error) {
	return m.mailbox.Reply(ctx, m.GetID(), form)
}

func (m *message) Replies(ctx context.Context, opts ListOptions) (MessageList, error) {
	return m.mailbox.Replies(ctx, m.GetID(), opts)
}

// snapshot is a detached copy of a store.Message.
type snapshot struct {
	id                 string
	subject            string
	body               string
	sender             PrincipalRef
	recipient          PrincipalRef
	parentID           string
	sentAt             time.Time
	readAt             *time.Time
	repliedAt          *time.Time
	senderDeletedAt    *time.Time
	recipientDeletedAt *time.Time
}

func snapshotOf(m store.Message) *snapshot {
	return &snapshot{
		id:                 m.GetID(),
		subject:            m.GetSubject(),
		body:               m.GetBody(),
		sender:             m.GetSender(),
		recipient:          m.GetRecipient(),
		parentID:           m.GetParentID(),
		sentAt:             m.GetSentAt(),
		readAt:             store.CopyTime(m.GetReadAt()),
		repliedAt:          store.CopyTime(m.GetRepliedAt()),
		senderDeletedAt:    store.CopyTime(m.GetSenderDeletedAt()),
		recipientDeletedAt: store.CopyTime(m.GetRecipientDeletedAt()),
	}
}

func (s *snapshot) GetID() string                     { return s.id }
func (s *snapshot) GetSubject() string                { return s.subject }
func (s *snapshot) GetBody() string                   { return s.body }
func (s *snapshot) GetSender() PrincipalRef           { return s.sender }
func (s *snapshot) GetRecipient() PrincipalRef        { return s.recipient }
func (s *snapshot) GetParentID() string               { return s.parentID }
func (s *snapshot) GetSentAt() time.Time              { return s.sentAt }
func (s *snapshot) GetReadAt() *time.Time             { return store.CopyTime(s.readAt) }
func (s *snapshot) GetRepliedAt() *time.Time          { return store.CopyTime(s.repliedAt) }
func (s *snapshot) GetSenderDeletedAt() *time.Time    { return store.CopyTime(s.senderDeletedAt) }
func (s *snapshot) GetRecipientDeletedAt() *time.Time { return store.CopyTime(s.recipientDeletedAt) }

// MessageListReader provides read-only access to a page of messages.
type MessageListReader interface {
	// All returns all messages in this page.
	All() []Message
	// Total returns the number of messages matching the query (not just this page).
	Total() int64
	// HasMore returns true if there are more messages after this page.
	HasMore() bool
	// NextCursor returns the cursor for fetching the next page.
	NextCursor() string
	// IDs returns the IDs of all messages in this page.
	IDs() []string
}

// MessageListMutator provides bulk operations on a page of messages.
type MessageListMutator interface {
	MarkRead(ctx context.Context) (*BulkResult, error)
	Delete(ctx context.Context) (*BulkResult, error)
	Restore(ctx context.Context) (*BulkResult, error)
}

// MessageList is a page of messages with bulk operations.
type MessageList interface {
	MessageListReader
	MessageListMutator
}

type messageList struct {
	messages   []Message
	total      int64
	hasMore    bool
	nextCursor string
	mailbox    *userMailbox
}

var _ MessageList = (*messageList)(nil)

func wrapMessageList(list *store.MessageList, m *userMailbox) *messageList {
	messages := make([]Message, len(list.Messages))
	for i, msg := range list.Messages {
		messages[i] = newMessage(msg, m)
	}
	return &messageList{
		messages:   messages,
		total:      list.Total,
		hasMore:    list.HasMore,
		nextCursor: list.NextCursor,
		mailbox:    m,
	}
}

func (l *messageList) All() []Message     { return l.messages }
func (l *messageList) Total() int64       { return l.total }
func (l *messageList) HasMore() bool      { return l.hasMore }
func (l *messageList) NextCursor() string { return l.nextCursor }

func (l *messageList) IDs() []string {
	ids := make([]string, len(l.messages))
	for i, msg := range l.messages {
		ids[i] = msg.GetID()
	}
	return ids
}

func (l *messageList) MarkRead(ctx context.Context) (*BulkResult, error) {
	return l.mailbox.BulkMarkRead(ctx, l.IDs())
}

func (l *messageList) Delete(ctx context.Context) (*BulkResult, error) {
	return l.mailbox.BulkDelete(ctx, l.IDs())
}

func (l *messageList) Restore(ctx context.Context) (*BulkResult, error) {
	return l.mailbox.BulkRestore(ctx, l.IDs())
}
