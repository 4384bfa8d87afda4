package privmsg

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/privmsg/store"
	"go.opentelemetry.io/otel/attribute"
)

// ComposeRequest describes a message to store.
type ComposeRequest struct {
	Sender    Principal
	Recipient Principal
	// ParentID makes the message a reply. The parent's replied_at is set
	// in the same atomic write.
	ParentID string
	Form     ComposeForm
}

// Compose validates and stores one message.
//
// Nothing is written when validation, principal resolution or a
// BeforeCompose hook fails. Once the message is committed the call
// succeeds: AfterCompose errors are logged and notification failures go
// to the failure handler.
func (s *service) Compose(ctx context.Context, req ComposeRequest) (_ []Message, retErr error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}

	sender, recipient := RefOf(req.Sender), RefOf(req.Recipient)
	ctx, endSpan := s.otel.startSpan(ctx, "privmsg.compose",
		attribute.String("sender", sender.String()),
		attribute.String("recipient", recipient.String()),
		attribute.String("parent_id", req.ParentID),
	)
	start := time.Now()
	defer func() {
		endSpan(retErr)
		s.otel.recordCompose(ctx, time.Since(start), req.ParentID != "", retErr)
	}()

	form, err := s.validator.validate(req.Form)
	if err != nil {
		return nil, err
	}
	req.Form = form

	if err := s.checkPrincipals(ctx, req); err != nil {
		return nil, err
	}

	if err := s.plugins.beforeCompose(ctx, req); err != nil {
		return nil, err
	}

	if err := s.composeSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire compose slot: %w", err)
	}
	defer s.composeSem.Release(1)

	// Close may have started while waiting for the slot.
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}

	stored, err := s.store.CreateMessage(ctx, store.MessageData{
		Sender:    sender,
		Recipient: recipient,
		Subject:   form.Subject,
		Body:      form.Body,
		ParentID:  req.ParentID,
		SentAt:    s.now(),
	})
	if err != nil {
		return nil, wrapStoreError("create message", err)
	}

	s.invalidateStats(stored)
	s.logger.Info("message composed",
		"message_id", stored.GetID(),
		"sender", sender.String(),
		"recipient", recipient.String(),
		"parent_id", req.ParentID,
	)

	msg := newMessage(stored, &userMailbox{ref: sender, service: s, valid: true})
	if err := s.plugins.afterCompose(ctx, msg); err != nil {
		s.logger.Error("after compose hook failed", "message_id", stored.GetID(), "error", err)
	}

	s.dispatch(ctx, stored)
	return []Message{msg}, nil
}

// checkPrincipals validates both refs and, with a resolver configured,
// requires both to resolve to live entities.
func (s *service) checkPrincipals(ctx context.Context, req ComposeRequest) error {
	if err := ValidatePrincipal(req.Sender); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if err := ValidatePrincipal(req.Recipient); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if s.opts.resolver == nil {
		return nil
	}
	if _, err := s.opts.resolver.Resolve(ctx, RefOf(req.Sender)); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if _, err := s.opts.resolver.Resolve(ctx, RefOf(req.Recipient)); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	return nil
}

// Send composes a new message from the mailbox principal to to.
func (m *userMailbox) Send(ctx context.Context, to Principal, form ComposeForm) (Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	return m.compose(ctx, ComposeRequest{Sender: m.ref, Recipient: to, Form: form})
}

// Reply answers parentID. The caller must be a party of the parent and
// the reply goes to the other party.
func (m *userMailbox) Reply(ctx context.Context, parentID string, form ComposeForm) (Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	parent, _, err := m.load(ctx, parentID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("reply: %w", ErrParentNotFound)
		}
		return nil, err
	}
	return m.compose(ctx, ComposeRequest{
		Sender:    m.ref,
		Recipient: store.Counterpart(parent, m.ref),
		ParentID:  parent.GetID(),
		Form:      form,
	})
}

func (m *userMailbox) compose(ctx context.Context, req ComposeRequest) (Message, error) {
	msgs, err := m.service.Compose(ctx, req)
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}
