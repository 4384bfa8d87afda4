package mongo

import (
	"time"

	"github.com/rbaliyan/privmsg/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var _ store.Message = (*message)(nil)

// messageDoc is the stored document. Nullable timestamps are written as
// explicit nulls so that {field: null} and $ifNull behave the same for
// every document.
type messageDoc struct {
	ID                 bson.ObjectID      `bson:"_id,omitempty"`
	Subject            string             `bson:"subject"`
	Body               string             `bson:"body"`
	Sender             store.PrincipalRef `bson:"sender"`
	Recipient          store.PrincipalRef `bson:"recipient"`
	ParentID           string             `bson:"parent_id,omitempty"`
	SentAt             time.Time          `bson:"sent_at"`
	ReadAt             *time.Time         `bson:"read_at"`
	RepliedAt          *time.Time         `bson:"replied_at"`
	SenderDeletedAt    *time.Time         `bson:"sender_deleted_at"`
	RecipientDeletedAt *time.Time         `bson:"recipient_deleted_at"`
}

func docToMessage(d *messageDoc) *message {
	return &message{
		id:                 d.ID.Hex(),
		subject:            d.Subject,
		body:               d.Body,
		sender:             d.Sender,
		recipient:          d.Recipient,
		parentID:           d.ParentID,
		sentAt:             d.SentAt.UTC(),
		readAt:             utc(d.ReadAt),
		repliedAt:          utc(d.RepliedAt),
		senderDeletedAt:    utc(d.SenderDeletedAt),
		recipientDeletedAt: utc(d.RecipientDeletedAt),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
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
