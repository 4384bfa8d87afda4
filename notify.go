package privmsg

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// NotificationKind identifies why a principal is being notified.
type NotificationKind string

const (
	// KindSent tells the sender a new message went out.
	KindSent NotificationKind = "messages_sent"
	// KindReceived tells the recipient a new message arrived.
	KindReceived NotificationKind = "messages_received"
	// KindReplied tells the replier the reply went out.
	KindReplied NotificationKind = "messages_replied"
	// KindReplyReceived tells the other party a reply arrived.
	KindReplyReceived NotificationKind = "messages_reply_received"
)

// Kinds lists every notification kind.
var Kinds = []NotificationKind{KindSent, KindReceived, KindReplied, KindReplyReceived}

func (k NotificationKind) String() string { return string(k) }

// Valid reports whether k is a known kind.
func (k NotificationKind) Valid() bool {
	switch k {
	case KindSent, KindReceived, KindReplied, KindReplyReceived:
		return true
	}
	return false
}

// ToRecipient reports whether the kind is addressed to the message recipient.
func (k NotificationKind) ToRecipient() bool {
	return k == KindReceived || k == KindReplyReceived
}

// Notification is one side effect of a committed compose.
type Notification struct {
	Kind    NotificationKind
	To      PrincipalRef
	Message store.Message
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use. Errors wrapped with retry.Permanent are not retried.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// NotificationsFor returns the notifications a newly stored message
// triggers: one for the author and one for the other party.
func NotificationsFor(msg store.Message) []Notification {
	sent, received := KindSent, KindReceived
	if msg.GetParentID() != "" {
		sent, received = KindReplied, KindReplyReceived
	}
	return []Notification{
		{Kind: sent, To: msg.GetSender(), Message: msg},
		{Kind: received, To: msg.GetRecipient(), Message: msg},
	}
}

// dispatch sends the notifications for msg. It never returns an error:
// failures go to the failure handler because the message is committed.
func (s *service) dispatch(ctx context.Context, msg store.Message) {
	if s.opts.notifier == nil {
		return
	}
	notifications := NotificationsFor(msg)

	if !s.opts.asyncNotify {
		s.deliverAll(ctx, notifications)
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.notifyTimeout)
		defer cancel()
		s.deliverAll(bg, notifications)
	}()
}

// deliverAll delivers notifications concurrently. One failing
// notification does not cancel the others.
func (s *service) deliverAll(ctx context.Context, notifications []Notification) {
	var g errgroup.Group
	for _, n := range notifications {
		g.Go(func() error {
			s.deliver(ctx, n)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *service) deliver(ctx context.Context, n Notification) {
	ctx, endSpan := s.otel.startSpan(ctx, "privmsg.notify",
		attribute.String("kind", n.Kind.String()),
		attribute.String("to", n.To.String()),
		attribute.String("message_id", n.Message.GetID()),
	)
	start := time.Now()

	policy := s.opts.notifyRetry
	if policy.Classify == nil {
		policy.Classify = IsRetryableError
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return s.notifyOnce(ctx, n)
	})

	endSpan(err)
	s.otel.recordNotify(ctx, time.Since(start), n.Kind, err)

	if err != nil {
		s.opts.safeNotifyFailure(&NotificationError{
			Kind:      n.Kind,
			To:        n.To,
			MessageID: n.Message.GetID(),
			Err:       err,
		})
		return
	}
	s.logger.Debug("notification delivered", "kind", n.Kind, "to", n.To.String(), "message_id", n.Message.GetID())
}

// notifyOnce calls the notifier, turning a panic into a permanent error.
func (s *service) notifyOnce(ctx context.Context, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = retry.Permanent(fmt.Errorf("notifier panic: %v", r))
		}
	}()
	return s.opts.notifier.Notify(ctx, n)
}
