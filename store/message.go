package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrincipalRef is the stored form of a polymorphic sender or recipient:
// an entity type tag plus a numeric id. It resolves to a concrete
// principal through a registry keyed by Type.
type PrincipalRef struct {
	Type string `json:"type" bson:"type"`
	ID   int64  `json:"id" bson:"id"`
}

// Ref builds a PrincipalRef.
func Ref(typ string, id int64) PrincipalRef {
	return PrincipalRef{Type: typ, ID: id}
}

// PrincipalType implements the root Principal interface.
func (r PrincipalRef) PrincipalType() string { return r.Type }

// PrincipalID implements the root Principal interface.
func (r PrincipalRef) PrincipalID() int64 { return r.ID }

// IsZero reports whether the reference is unset.
func (r PrincipalRef) IsZero() bool { return r.Type == "" && r.ID == 0 }

// Valid reports whether the reference names a concrete entity.
func (r PrincipalRef) Valid() bool {
	return r.Type != "" && r.ID > 0 && !strings.ContainsAny(r.Type, ": \t\n")
}

// String renders the reference as "type:id".
func (r PrincipalRef) String() string {
	return r.Type + ":" + strconv.FormatInt(r.ID, 10)
}

// ParseRef parses the "type:id" form produced by String.
func ParseRef(s string) (PrincipalRef, error) {
	typ, rawID, ok := strings.Cut(s, ":")
	if !ok {
		return PrincipalRef{}, fmt.Errorf("%w: %q", ErrInvalidPrincipal, s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return PrincipalRef{}, fmt.Errorf("%w: %q", ErrInvalidPrincipal, s)
	}
	ref := PrincipalRef{Type: typ, ID: id}
	if !ref.Valid() {
		return PrincipalRef{}, fmt.Errorf("%w: %q", ErrInvalidPrincipal, s)
	}
	return ref, nil
}

// Party identifies which side of a message a principal occupies.
type Party uint8

const (
	// PartySender is the message author.
	PartySender Party = 1 << iota
	// PartyRecipient is the message addressee.
	PartyRecipient
)

// Has reports whether p includes q.
func (p Party) Has(q Party) bool { return p&q != 0 }

func (p Party) String() string {
	switch p {
	case PartySender:
		return "sender"
	case PartyRecipient:
		return "recipient"
	case PartySender | PartyRecipient:
		return "sender+recipient"
	default:
		return "none"
	}
}

// Folder names a derived view over the message table.
type Folder string

const (
	FolderInbox  Folder = "inbox"
	FolderOutbox Folder = "outbox"
	FolderTrash  Folder = "trash"
)

// Valid reports whether f is one of the known views.
func (f Folder) Valid() bool {
	switch f {
	case FolderInbox, FolderOutbox, FolderTrash:
		return true
	}
	return false
}

// Message is a read-only view of a stored private message.
// Mutations go through the specific Store operations (MarkRead,
// MarkDeleted, ClearDeleted); a message is never modified in place.
type Message interface {
	GetID() string
	GetSubject() string
	GetBody() string
	GetSender() PrincipalRef
	GetRecipient() PrincipalRef
	GetParentID() string
	GetSentAt() time.Time
	GetReadAt() *time.Time
	GetRepliedAt() *time.Time
	GetSenderDeletedAt() *time.Time
	GetRecipientDeletedAt() *time.Time
}

// IsNew reports whether the recipient has not read the message yet.
func IsNew(m Message) bool { return m.GetReadAt() == nil }

// IsReplied reports whether a reply has been created against the message.
func IsReplied(m Message) bool { return m.GetRepliedAt() != nil }

// PartyOf reports the sides of m that ref occupies. A message sent to
// oneself yields both.
func PartyOf(m Message, ref PrincipalRef) Party {
	var p Party
	if m.GetSender() == ref {
		p |= PartySender
	}
	if m.GetRecipient() == ref {
		p |= PartyRecipient
	}
	return p
}

// DeletedBy reports whether every side ref occupies has soft-deleted m.
func DeletedBy(m Message, ref PrincipalRef) bool {
	p := PartyOf(m, ref)
	if p == 0 {
		return false
	}
	if p.Has(PartySender) && m.GetSenderDeletedAt() == nil {
		return false
	}
	if p.Has(PartyRecipient) && m.GetRecipientDeletedAt() == nil {
		return false
	}
	return true
}

// Counterpart returns the other side of the conversation from ref's
// point of view. For a message sent to oneself it returns ref.
func Counterpart(m Message, ref PrincipalRef) PrincipalRef {
	if m.GetSender() == ref {
		return m.GetRecipient()
	}
	return m.GetSender()
}

// MessageData contains the fields supplied when creating a message.
// SentAt is assigned by the caller so that the parent's replied_at can
// be set to the exact same instant.
type MessageData struct {
	Sender    PrincipalRef
	Recipient PrincipalRef
	Subject   string
	Body      string
	ParentID  string
	SentAt    time.Time
}

// MessageList represents a page of messages.
type MessageList struct {
	Messages   []Message
	Total      int64
	HasMore    bool
	NextCursor string
}

// CopyTime returns a copy of t so callers cannot alias stored state.
func CopyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Timestamp truncates t to the millisecond precision every backend can
// represent and normalizes it to UTC.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
