// Package inapp delivers privmsg notifications as typed events on an
// event bus.
//
// Each notification kind has its own event named "<bus>.privmsg.<kind>".
// The bus is created on Init and closed on Close, so registering the
// notifier with privmsg.WithNotifier ties it to the service lifecycle:
//
//	n := inapp.New(inapp.WithRedisClient(rdb))
//	svc, _ := privmsg.New(privmsg.WithStore(st), privmsg.WithNotifier(n))
//	svc.Connect(ctx) // initializes the bus
//
// Subscribers attach to the events returned by Event.
package inapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/privmsg"
	"github.com/rbaliyan/privmsg/retry"
	"github.com/redis/go-redis/v9"
)

// ErrNotInitialized is returned by Notify before Init or after Close.
var ErrNotInitialized = errors.New("inapp: notifier not initialized")

// Payload is the body of every in-app notification event.
type Payload struct {
	Kind    string  `json:"kind"`
	To      string  `json:"to"`
	Message Message `json:"message"`
}

// Message is the JSON form of the message a notification refers to.
type Message struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	ParentID  string    `json:"parent_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// NewPayload builds the event payload for n.
func NewPayload(n privmsg.Notification) Payload {
	m := n.Message
	return Payload{
		Kind: n.Kind.String(),
		To:   n.To.String(),
		Message: Message{
			ID:        m.GetID(),
			Subject:   m.GetSubject(),
			Body:      m.GetBody(),
			Sender:    m.GetSender().String(),
			Recipient: m.GetRecipient().String(),
			ParentID:  m.GetParentID(),
			SentAt:    m.GetSentAt(),
		},
	}
}

type options struct {
	name        string
	transport   transport.Transport
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

// Option configures the notifier.
type Option func(*options)

// WithName sets the bus name prefix. Default: "privmsg".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithTransport sets a custom event transport. It takes precedence over
// WithRedisClient.
func WithTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithRedisClient publishes over Redis Streams.
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Notifier publishes notifications to an event bus.
type Notifier struct {
	opts *options

	mu     sync.RWMutex
	bus    *event.Bus
	events map[privmsg.NotificationKind]event.Event[Payload]
}

var (
	_ privmsg.Notifier = (*Notifier)(nil)
	_ privmsg.Plugin   = (*Notifier)(nil)
)

// New creates a notifier. Call Init (or connect the service it is
// registered with) before use.
func New(opts ...Option) *Notifier {
	o := &options{
		name:   "privmsg",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Notifier{opts: o}
}

// Name implements privmsg.Plugin.
func (n *Notifier) Name() string { return "inapp" }

// busCounter generates unique suffixes for bus names.
var busCounter int64

// Init creates the bus and registers one event per notification kind.
func (n *Notifier) Init(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bus != nil {
		return nil
	}

	busName := fmt.Sprintf("%s-%d", n.opts.name, atomic.AddInt64(&busCounter, 1))
	t, err := n.newTransport()
	if err != nil {
		return err
	}
	bus, err := event.NewBus(busName, event.WithTransport(t))
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}

	events := make(map[privmsg.NotificationKind]event.Event[Payload], len(privmsg.Kinds))
	for _, kind := range privmsg.Kinds {
		ev := event.New[Payload](EventName(busName, kind))
		if err := event.Register(ctx, bus, ev); err != nil {
			if closeErr := bus.Close(ctx); closeErr != nil {
				n.opts.logger.Error("failed to close event bus after register failure", "error", closeErr)
			}
			return fmt.Errorf("register %s: %w", kind, err)
		}
		events[kind] = ev
	}

	n.bus = bus
	n.events = events
	n.opts.logger.Info("in-app notifier initialized", "bus", busName)
	return nil
}

func (n *Notifier) newTransport() (transport.Transport, error) {
	switch {
	case n.opts.transport != nil:
		n.opts.logger.Info("initializing event bus with custom transport")
		return n.opts.transport, nil
	case n.opts.redisClient != nil:
		n.opts.logger.Info("initializing event bus with Redis transport")
		t, err := eventredis.New(n.opts.redisClient)
		if err != nil {
			return nil, fmt.Errorf("create redis transport: %w", err)
		}
		return t, nil
	default:
		n.opts.logger.Debug("initializing event bus with noop transport")
		return noop.New(), nil
	}
}

// Close closes the bus. It is safe to call more than once.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bus == nil {
		return nil
	}
	err := n.bus.Close(ctx)
	n.bus = nil
	n.events = nil
	if err != nil {
		return fmt.Errorf("close event bus: %w", err)
	}
	return nil
}

// EventName returns the full event name for kind on the named bus.
func EventName(busName string, kind privmsg.NotificationKind) string {
	return busName + ".privmsg." + kind.String()
}

// Event returns the registered event for kind, for subscribing.
func (n *Notifier) Event(kind privmsg.NotificationKind) (event.Event[Payload], bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ev, ok := n.events[kind]
	return ev, ok
}

// Notify publishes n on the event for its kind. Unknown kinds and an
// uninitialized notifier are permanent failures.
func (n *Notifier) Notify(ctx context.Context, note privmsg.Notification) error {
	n.mu.RLock()
	initialized := n.bus != nil
	ev, ok := n.events[note.Kind]
	n.mu.RUnlock()

	if !initialized {
		return retry.Permanent(ErrNotInitialized)
	}
	if !ok {
		return retry.Permanent(fmt.Errorf("inapp: unknown notification kind %q", note.Kind))
	}
	if err := ev.Publish(ctx, NewPayload(note)); err != nil {
		return fmt.Errorf("publish %s: %w", note.Kind, err)
	}
	return nil
}
