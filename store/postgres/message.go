package postgres

import (
	"database/sql"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

var _ store.Message = (*message)(nil)

// row is the scan target for sqlx. Column names follow sqlbuild.Columns.
type row struct {
	ID                 string         `db:"id"`
	Subject            string         `db:"subject"`
	Body               string         `db:"body"`
	SenderType         string         `db:"sender_type"`
	SenderID           int64          `db:"sender_id"`
	RecipientType      string         `db:"recipient_type"`
	RecipientID        int64          `db:"recipient_id"`
	ParentID           sql.NullString `db:"parent_id"`
	SentAt             time.Time      `db:"sent_at"`
	ReadAt             sql.NullTime   `db:"read_at"`
	RepliedAt          sql.NullTime   `db:"replied_at"`
	SenderDeletedAt    sql.NullTime   `db:"sender_deleted_at"`
	RecipientDeletedAt sql.NullTime   `db:"recipient_deleted_at"`
}

func (r *row) toMessage() *message {
	return &message{
		id:                 r.ID,
		subject:            r.Subject,
		body:               r.Body,
		sender:             store.Ref(r.SenderType, r.SenderID),
		recipient:          store.Ref(r.RecipientType, r.RecipientID),
		parentID:           r.ParentID.String,
		sentAt:             r.SentAt.UTC(),
		readAt:             nullTime(r.ReadAt),
		repliedAt:          nullTime(r.RepliedAt),
		senderDeletedAt:    nullTime(r.SenderDeletedAt),
		recipientDeletedAt: nullTime(r.RecipientDeletedAt),
	}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
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

func toMessages(rows []row) []store.Message {
	msgs := make([]store.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toMessage()
	}
	return msgs
}
