package memory

import (
	"context"

	"github.com/rbaliyan/privmsg/store"
)

// CreateMessage stores a new message. For a reply, the parent's lock is
// held while the child is stored and the parent is stamped, so the two
// writes become visible together.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	sentAt := store.Timestamp(data.SentAt)
	m := &message{
		id:        newID(),
		subject:   data.Subject,
		body:      data.Body,
		sender:    data.Sender,
		recipient: data.Recipient,
		parentID:  data.ParentID,
		sentAt:    sentAt,
	}

	if data.ParentID == "" {
		s.messages.Store(m.id, m)
		return m.clone(), nil
	}

	lock := s.getMsgLock(data.ParentID)
	lock.Lock()
	defer lock.Unlock()

	parent, ok := s.load(data.ParentID)
	if !ok {
		return nil, store.ErrParentNotFound
	}

	updated := parent.clone()
	updated.repliedAt = &sentAt

	s.messages.Store(m.id, m)
	s.messages.Store(updated.id, updated)
	return m.clone(), nil
}
