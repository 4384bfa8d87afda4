package privmsg

import (
	"context"
	"time"

	"github.com/rbaliyan/privmsg/store"
	"go.opentelemetry.io/otel/attribute"
)

// MarkRead sets read_at on a message the caller received. Calling it again
// keeps the first read_at.
func (m *userMailbox) MarkRead(ctx context.Context, id string) error {
	return m.update(ctx, "mark_read", id, func(ctx context.Context, msg store.Message, party store.Party) error {
		if !party.Has(store.PartyRecipient) {
			return ErrUnauthorized
		}
		if !store.IsNew(msg) {
			return nil
		}
		return wrapStoreError("mark read", m.service.store.MarkRead(ctx, id, m.service.now()))
	})
}

// Delete moves the message to the caller's trash. Only the caller's side
// is marked; the other party's view is unchanged.
func (m *userMailbox) Delete(ctx context.Context, id string) error {
	return m.update(ctx, "delete", id, func(ctx context.Context, msg store.Message, party store.Party) error {
		if store.DeletedBy(msg, m.ref) {
			return ErrAlreadyInTrash
		}
		return wrapStoreError("delete", m.service.store.MarkDeleted(ctx, id, party, m.service.now()))
	})
}

// Restore takes the message out of the caller's trash.
func (m *userMailbox) Restore(ctx context.Context, id string) error {
	return m.update(ctx, "restore", id, func(ctx context.Context, msg store.Message, party store.Party) error {
		if !deletedByAny(msg, party) {
			return ErrNotInTrash
		}
		return wrapStoreError("restore", m.service.store.ClearDeleted(ctx, id, party))
	})
}

// deletedByAny reports whether any side in party has deleted msg.
func deletedByAny(msg store.Message, party store.Party) bool {
	return (party.Has(store.PartySender) && msg.GetSenderDeletedAt() != nil) ||
		(party.Has(store.PartyRecipient) && msg.GetRecipientDeletedAt() != nil)
}

// update loads and authorizes id, applies fn and drops the cached stats of
// both parties on success.
func (m *userMailbox) update(ctx context.Context, op, id string, fn func(context.Context, store.Message, store.Party) error) (retErr error) {
	if err := m.checkAccess(); err != nil {
		return err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "privmsg.update",
		attribute.String("principal", m.ref.String()),
		attribute.String("message_id", id),
		attribute.String("operation", op),
	)
	start := time.Now()
	defer func() {
		endSpan(retErr)
		m.service.otel.recordUpdate(ctx, time.Since(start), op, retErr)
	}()

	msg, party, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(ctx, msg, party); err != nil {
		return err
	}

	m.service.invalidateStats(msg)
	m.service.logger.Debug("message updated", "operation", op, "message_id", id, "principal", m.ref.String())
	return nil
}
