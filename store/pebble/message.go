package pebble

import (
	"time"

	"github.com/rbaliyan/privmsg/store"
)

var _ store.Message = (*message)(nil)

// messageDoc is the JSON encoding of a stored message.
type messageDoc struct {
	ID                 string             `json:"id"`
	Subject            string             `json:"subject"`
	Body               string             `json:"body"`
	Sender             store.PrincipalRef `json:"sender"`
	Recipient          store.PrincipalRef `json:"recipient"`
	ParentID           string             `json:"parent_id,omitempty"`
	SentAt             time.Time          `json:"sent_at"`
	ReadAt             *time.Time         `json:"read_at,omitempty"`
	RepliedAt          *time.Time         `json:"replied_at,omitempty"`
	SenderDeletedAt    *time.Time         `json:"sender_deleted_at,omitempty"`
	RecipientDeletedAt *time.Time         `json:"recipient_deleted_at,omitempty"`
}

func (d *messageDoc) toMessage() *message {
	return &message{
		id:                 d.ID,
		subject:            d.Subject,
		body:               d.Body,
		sender:             d.Sender,
		recipient:          d.Recipient,
		parentID:           d.ParentID,
		sentAt:             d.SentAt.UTC(),
		readAt:             d.ReadAt,
		repliedAt:          d.RepliedAt,
		senderDeletedAt:    d.SenderDeletedAt,
		recipientDeletedAt: d.RecipientDeletedAt,
	}
}

func fromMessage(m *message) *messageDoc {
	return &messageDoc{
		ID:                 m.id,
		Subject:            m.subject,
		Body:               m.body,
		Sender:             m.sender,
		Recipient:          m.recipient,
		ParentID:           m.parentID,
		SentAt:             m.sentAt,
		ReadAt:             m.readAt,
		RepliedAt:          m.repliedAt,
		SenderDeletedAt:    m.senderDeletedAt,
		RecipientDeletedAt: m.recipientDeletedAt,
	}
}

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
