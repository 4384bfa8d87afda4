package privmsg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/privmsg/store"
	"golang.org/x/sync/semaphore"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages the messaging system (server-side).
// It owns the store connection, plugins and notifier, and hands out
// per-principal mailbox clients.
type Service interface {
	ServiceHealth

	// Connect connects the store and initializes plugins.
	Connect(ctx context.Context) error
	// Close waits for in-flight composes and notifications, then closes
	// plugins and the store.
	Close(ctx context.Context) error
	// Client returns a mailbox for the given principal.
	// The returned client shares the service's connections.
	Client(p Principal) Mailbox
	// Compose validates and stores a message, then dispatches notifications.
	// It returns the created message. Notification failures never fail it.
	Compose(ctx context.Context, req ComposeRequest) ([]Message, error)
}

// MessageReader provides single message retrieval.
type MessageReader interface {
	// Get returns a message the caller sent or received.
	Get(ctx context.Context, id string) (Message, error)
	// Read is Get plus marking the message read when the caller is its
	// recipient.
	Read(ctx context.Context, id string) (Message, error)
}

// MessageLister provides the folder views.
type MessageLister interface {
	Inbox(ctx context.Context, opts ListOptions) (MessageList, error)
	Outbox(ctx context.Context, opts ListOptions) (MessageList, error)
	Trash(ctx context.Context, opts ListOptions) (MessageList, error)
	// Replies lists the direct replies to a message the caller is party to.
	Replies(ctx context.Context, id string, opts ListOptions) (MessageList, error)
}

// MessageStreamer provides streaming access to a folder.
// Use streaming for large folders; use MessageLister for paged UIs.
type MessageStreamer interface {
	Stream(ctx context.Context, folder Folder, opts StreamOptions) (MessageIterator, error)
}

// MessageSender composes messages as the mailbox principal.
type MessageSender interface {
	// Send composes a new message to the given principal.
	Send(ctx context.Context, to Principal, form ComposeForm) (Message, error)
	// Reply answers parentID. The recipient is the other party of the parent.
	Reply(ctx context.Context, parentID string, form ComposeForm) (Message, error)
}

// MailboxMutator provides mutation operations on messages by ID.
type MailboxMutator interface {
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

// BulkOperator provides bulk mutation operations by message IDs.
type BulkOperator interface {
	BulkMarkRead(ctx context.Context, ids []string) (*BulkResult, error)
	BulkDelete(ctx context.Context, ids []string) (*BulkResult, error)
	BulkRestore(ctx context.Context, ids []string) (*BulkResult, error)
}

// Mailbox is one principal's view of the message table.
//
// For single message operations via a message handle, use the methods
// on the Message returned by Get. For bulk operations on a listed page,
// use the methods on MessageList:
//
//	inbox, _ := mb.Inbox(ctx, privmsg.ListOptions{})
//	inbox.MarkRead(ctx) // mark the whole page read
type Mailbox interface {
	// Principal returns the owner of this mailbox.
	Principal() PrincipalRef
	MessageReader
	MessageLister
	MessageStreamer
	MessageSender
	MailboxMutator
	BulkOperator
	StatsReader
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store      store.Store
	logger     *slog.Logger
	opts       *options
	state      int32
	plugins    *pluginRegistry
	otel       *otelInstrumentation
	composeSem *semaphore.Weighted
	validator  *formValidator
	notifyWG   sync.WaitGroup
	statsCache sync.Map // PrincipalRef.String() -> *statsEntry
}

// New creates a privmsg service. Call Connect before use.
//
// A notifier that implements Plugin is initialized and closed with the
// service.
func New(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}
	if p, ok := o.notifier.(Plugin); ok {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		store:      o.store,
		logger:     o.logger,
		opts:       o,
		plugins:    plugins,
		otel:       otelInstr,
		composeSem: semaphore.NewWeighted(int64(o.maxConcurrentComposes)),
		validator:  newFormValidator(o.limits()),
	}, nil
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect connects the store and initializes plugins.
func (s *service) Connect(ctx context.Context) error {
	// Client() must never observe a half-initialized service.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.plugins.initAll(ctx); err != nil {
		if closeErr := s.store.Close(ctx); closeErr != nil {
			s.logger.Error("failed to close store after plugin init failure", "error", closeErr)
		}
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("privmsg service connected", "notifications", s.opts.notifier != nil)
	return nil
}

// Close waits for in-flight work and releases resources.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// No new composes can start now that checkAccess fails; acquiring every
	// slot waits for the running ones.
	s.logger.Info("waiting for in-flight operations to complete", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.composeSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentComposes)); err != nil {
		s.logger.Warn("timeout waiting for in-flight composes, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.composeSem.Release(int64(s.opts.maxConcurrentComposes))
	}

	if err := s.waitNotifications(shutdownCtx); err != nil {
		s.logger.Warn("timeout waiting for notifications, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	}

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.statsCache.Clear()
	return errors.Join(errs...)
}

// waitNotifications blocks until background dispatches finish or ctx ends.
func (s *service) waitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifyWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client returns a mailbox for p. An invalid principal yields a mailbox
// whose operations fail with ErrInvalidPrincipal.
func (s *service) Client(p Principal) Mailbox {
	return &userMailbox{
		ref:     RefOf(p),
		service: s,
		valid:   ValidatePrincipal(p) == nil,
	}
}

// now returns the service clock at storage precision.
func (s *service) now() time.Time {
	return s.opts.now()
}

// userMailbox is the default implementation of Mailbox.
type userMailbox struct {
	ref     PrincipalRef
	service *service
	valid   bool // set by Client() after validation
}

var _ Mailbox = (*userMailbox)(nil)

// Principal returns the owner of this mailbox.
func (m *userMailbox) Principal() PrincipalRef {
	return m.ref
}

func (m *userMailbox) isConnected() bool {
	return atomic.LoadInt32(&m.service.state) == stateConnected
}

// checkAccess verifies the mailbox is ready for operations.
func (m *userMailbox) checkAccess() error {
	if !m.isConnected() {
		return ErrNotConnected
	}
	if !m.valid {
		return ErrInvalidPrincipal
	}
	return nil
}

// load fetches a message and verifies the caller is a party to it.
func (m *userMailbox) load(ctx context.Context, id string) (store.Message, store.Party, error) {
	msg, err := m.service.store.Get(ctx, id)
	if err != nil {
		return nil, 0, wrapStoreError("get message", err)
	}
	party := store.PartyOf(msg, m.ref)
	if party == 0 {
		return nil, 0, ErrUnauthorized
	}
	return msg, party, nil
}
