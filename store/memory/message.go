package memory

import (
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// message is the in-memory representation of a stored message.
// Stored values are never mutated; writers store a modified clone.
type message struct {
	id                 string
	subject            string
	body               string
	sender             store.PrincipalRef
	recipient          store.PrincipalRef
	parentID           string
	sentAt             time.Time
	readAt             *time.Time
	repliedAt          *time.Time
	senderDeletedAt    *time.Time
	recipientDeletedAt *time.Time
}

// clone creates a deep copy of the message.
func (m *message) clone() *message {
	c := *m
	c.readAt = store.CopyTime(m.readAt)
	c.repliedAt = store.CopyTime(m.repliedAt)
	c.senderDeletedAt = store.CopyTime(m.senderDeletedAt)
	c.recipientDeletedAt = store.CopyTime(m.recipientDeletedAt)
	return &c
}

func (m *message) GetID() string                     { return m.id }
func (m *message) GetSubject() string                { return m.subject }
func (m *message) GetBody() string                   { return m.body }
func (m *message) GetSender() store.PrincipalRef     { return m.sender }
func (m *message) GetRecipient() store.PrincipalRef  { return m.recipient }
func (m *message) GetParentID() string               { return m.parentID }
func (m *message) GetSentAt() time.Time              { return m.sentAt }
func (m *message) GetReadAt() *time.Time             { return m.readAt }
func (m *message) GetRepliedAt() *time.Time          { return m.repliedAt }
func (m *message) GetSenderDeletedAt() *time.Time    { return m.senderDeletedAt }
func (m *message) GetRecipientDeletedAt() *time.Time { return m.recipientDeletedAt }

var _ store.Message = (*message)(nil)
