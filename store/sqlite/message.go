package sqlite

import (
	"database/sql"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

var _ store.Message = (*message)(nil)

// row mirrors the table; timestamps are unix milliseconds.
type row struct {
	ID                 string         `db:"id"`
	Subject            string         `db:"subject"`
	Body               string         `db:"body"`
	SenderType         string         `db:"sender_type"`
	SenderID           int64          `db:"sender_id"`
	RecipientType      string         `db:"recipient_type"`
	RecipientID        int64          `db:"recipient_id"`
	ParentID           sql.NullString `db:"parent_id"`
	SentAt             int64          `db:"sent_at"`
	ReadAt             sql.NullInt64  `db:"read_at"`
	RepliedAt          sql.NullInt64  `db:"replied_at"`
	SenderDeletedAt    sql.NullInt64  `db:"sender_deleted_at"`
	RecipientDeletedAt sql.NullInt64  `db:"recipient_deleted_at"`
}

func (r *row) toMessage() *message {
	return &message{
		id:                 r.ID,
		subject:            r.Subject,
		body:               r.Body,
		sender:             store.Ref(r.SenderType, r.SenderID),
		recipient:          store.Ref(r.RecipientType, r.RecipientID),
		parentID:           r.ParentID.String,
		sentAt:             time.UnixMilli(r.SentAt).UTC(),
		readAt:             fromMillis(r.ReadAt),
		repliedAt:          fromMillis(r.RepliedAt),
		senderDeletedAt:    fromMillis(r.SenderDeletedAt),
		recipientDeletedAt: fromMillis(r.RecipientDeletedAt),
	}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
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
