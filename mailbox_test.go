package privmsg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store"
	"github.com/rbaliyan/privmsg/store/memory"
)

var (
	alice = Ref("user", 1)
	bob   = Ref("user", 2)
	carol = Ref("user", 3)
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// setupTestService returns a connected service over a memory store.
// The service is closed when the test ends.
func setupTestService(t *testing.T, opts ...Option) Service {
	t.Helper()
	svc, _ := setupTestServiceWithStore(t, opts...)
	return svc
}

func setupTestServiceWithStore(t *testing.T, opts ...Option) (Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc, err := New(append([]Option{WithStore(st), WithNotifyRetry(retry.None())}, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, st
}

func mustSend(t *testing.T, mb Mailbox, to Principal, subject, body string) Message {
	t.Helper()
	msg, err := mb.Send(context.Background(), to, ComposeForm{Subject: subject, Body: body})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return msg
}

func TestNew(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := New()
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("creates service with store", func(t *testing.T) {
		svc, err := New(WithStore(memory.New()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.IsConnected() {
			t.Error("new service should not be connected")
		}
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, err := New(WithStore(memory.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mb := svc.Client(alice)
	if _, err := mb.Inbox(ctx, ListOptions{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("before connect: expected ErrNotConnected, got %v", err)
	}

	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !svc.IsConnected() {
		t.Error("expected connected")
	}
	if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := svc.Close(ctx); err != nil {
		t.Errorf("second close should not error, got %v", err)
	}

	if _, err := mb.Send(ctx, bob, ComposeForm{Subject: "s", Body: "b"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("after close: expected ErrNotConnected, got %v", err)
	}
	if _, err := svc.Compose(ctx, ComposeRequest{Sender: alice, Recipient: bob}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("compose after close: expected ErrNotConnected, got %v", err)
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	t.Run("principal", func(t *testing.T) {
		if got := svc.Client(alice).Principal(); got != alice {
			t.Errorf("Principal() = %v, want %v", got, alice)
		}
	})

	t.Run("invalid principal", func(t *testing.T) {
		for _, p := range []Principal{nil, Ref("", 1), Ref("user", 0), Ref("a:b", 1)} {
			mb := svc.Client(p)
			if _, err := mb.Inbox(ctx, ListOptions{}); !errors.Is(err, ErrInvalidPrincipal) {
				t.Errorf("%v: expected ErrInvalidPrincipal, got %v", p, err)
			}
		}
	})
}

func TestSendAndFolders(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := setupTestService(t, WithClock(clock.Now))
	a, b := svc.Client(alice), svc.Client(bob)

	msg := mustSend(t, a, bob, "  Hello  ", "Hi Bob\nHow are you?")

	if msg.GetID() == "" {
		t.Fatal("expected an id")
	}
	if msg.GetSubject() != "Hello" {
		t.Errorf("subject = %q, want trimmed %q", msg.GetSubject(), "Hello")
	}
	if msg.GetSender() != alice || msg.GetRecipient() != bob {
		t.Errorf("parties = %v -> %v", msg.GetSender(), msg.GetRecipient())
	}
	if !msg.GetSentAt().Equal(clock.Now()) {
		t.Errorf("sent_at = %v, want %v", msg.GetSentAt(), clock.Now())
	}
	if !msg.IsNew() || msg.IsReplied() {
		t.Error("new message should be unread and unreplied")
	}
	if msg.GetParentID() != "" {
		t.Error("new message should have no parent")
	}
	if msg.Party() != store.PartySender {
		t.Errorf("party = %v, want sender", msg.Party())
	}

	tests := []struct {
		name string
		list func() (MessageList, error)
		want int
	}{
		{"bob inbox", func() (MessageList, error) { return b.Inbox(ctx, ListOptions{}) }, 1},
		{"bob outbox", func() (MessageList, error) { return b.Outbox(ctx, ListOptions{}) }, 0},
		{"alice inbox", func() (MessageList, error) { return a.Inbox(ctx, ListOptions{}) }, 0},
		{"alice outbox", func() (MessageList, error) { return a.Outbox(ctx, ListOptions{}) }, 1},
		{"alice trash", func() (MessageList, error) { return a.Trash(ctx, ListOptions{}) }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := tt.list()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list.All()) != tt.want {
				t.Errorf("got %d messages, want %d", len(list.All()), tt.want)
			}
			if list.Total() != int64(tt.want) {
				t.Errorf("total = %d, want %d", list.Total(), tt.want)
			}
		})
	}
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	svc, st := setupTestServiceWithStore(t)
	a := svc.Client(alice)

	if _, err := a.Send(ctx, bob, ComposeForm{Subject: " ", Body: "body"}); !errors.Is(err, ErrEmptySubject) {
		t.Errorf("expected ErrEmptySubject, got %v", err)
	}
	if _, err := a.Send(ctx, Ref("user", -1), ComposeForm{Subject: "s", Body: "b"}); !errors.Is(err, ErrInvalidPrincipal) {
		t.Errorf("expected ErrInvalidPrincipal, got %v", err)
	}

	n, err := st.Count(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rejected composes stored %d messages", n)
	}
}

func TestListOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := setupTestService(t, WithClock(clock.Now), WithDefaultQueryLimit(2))
	a, b := svc.Client(alice), svc.Client(bob)

	var ids []string
	for _, s := range []string{"one", "two", "three"} {
		ids = append(ids, mustSend(t, a, bob, s, "body").GetID())
		clock.Advance(time.Second)
	}

	page, err := b.Inbox(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if got := page.IDs(); len(got) != 2 || got[0] != ids[0] || got[1] != ids[1] {
		t.Errorf("first page = %v, want oldest two of %v", got, ids)
	}
	if !page.HasMore() || page.Total() != 3 {
		t.Errorf("hasMore=%v total=%d", page.HasMore(), page.Total())
	}

	next, err := b.Inbox(ctx, ListOptions{StartAfter: page.NextCursor()})
	if err != nil {
		t.Fatalf("inbox page 2: %v", err)
	}
	if got := next.IDs(); len(got) != 1 || got[0] != ids[2] {
		t.Errorf("second page = %v, want [%s]", got, ids[2])
	}

	desc, err := b.Inbox(ctx, ListOptions{SortOrder: SortDesc, Limit: 10})
	if err != nil {
		t.Fatalf("inbox desc: %v", err)
	}
	if got := desc.IDs(); len(got) != 3 || got[0] != ids[2] {
		t.Errorf("descending = %v", got)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	msg := mustSend(t, svc.Client(alice), bob, "s", "b")

	tests := []struct {
		name    string
		as      PrincipalRef
		id      string
		wantErr error
	}{
		{"sender", alice, msg.GetID(), nil},
		{"recipient", bob, msg.GetID(), nil},
		{"stranger", carol, msg.GetID(), ErrUnauthorized},
		{"missing", alice, "no-such-id", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Client(tt.as).Get(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.GetID() != msg.GetID() {
				t.Errorf("id = %s, want %s", got.GetID(), msg.GetID())
			}
		})
	}

	t.Run("missing matches store sentinel", func(t *testing.T) {
		_, err := svc.Client(alice).Get(ctx, "no-such-id")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected store.ErrNotFound, got %v", err)
		}
	})
}

func TestReply(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := setupTestService(t, WithClock(clock.Now))
	a, b := svc.Client(alice), svc.Client(bob)

	parent := mustSend(t, a, bob, "Question", "What time?")
	clock.Advance(time.Minute)

	reply, err := b.Reply(ctx, parent.GetID(), ComposeForm{Subject: "Re: Question", Body: "Noon"})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.GetRecipient() != alice || reply.GetSender() != bob {
		t.Errorf("reply routed %v -> %v, want bob -> alice", reply.GetSender(), reply.GetRecipient())
	}
	if reply.GetParentID() != parent.GetID() {
		t.Errorf("parent id = %q, want %q", reply.GetParentID(), parent.GetID())
	}

	updated, err := a.Get(ctx, parent.GetID())
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if !updated.IsReplied() {
		t.Fatal("parent should be marked replied")
	}
	if !updated.GetRepliedAt().Equal(reply.GetSentAt()) {
		t.Errorf("replied_at = %v, want reply sent_at %v", updated.GetRepliedAt(), reply.GetSentAt())
	}

	t.Run("sender replies to own message", func(t *testing.T) {
		clock.Advance(time.Minute)
		r, err := parent.Reply(ctx, ComposeForm{Subject: "Re", Body: "Also"})
		if err != nil {
			t.Fatalf("reply: %v", err)
		}
		if r.GetRecipient() != bob {
			t.Errorf("recipient = %v, want bob", r.GetRecipient())
		}
	})

	t.Run("replies lists children", func(t *testing.T) {
		list, err := a.Replies(ctx, parent.GetID(), ListOptions{})
		if err != nil {
			t.Fatalf("replies: %v", err)
		}
		if len(list.All()) != 2 || list.All()[0].GetID() != reply.GetID() {
			t.Errorf("replies = %v", list.IDs())
		}
	})

	t.Run("stranger cannot reply", func(t *testing.T) {
		_, err := svc.Client(carol).Reply(ctx, parent.GetID(), ComposeForm{Subject: "x", Body: "y"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("stranger cannot list replies", func(t *testing.T) {
		_, err := svc.Client(carol).Replies(ctx, parent.GetID(), ListOptions{})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestReplyMissingParent(t *testing.T) {
	ctx := context.Background()
	svc, st := setupTestServiceWithStore(t)

	_, err := svc.Client(alice).Reply(ctx, "no-such-id", ComposeForm{Subject: "Re", Body: "b"})
	if !errors.Is(err, ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}

	_, err = svc.Compose(ctx, ComposeRequest{
		Sender:    alice,
		Recipient: bob,
		ParentID:  "no-such-id",
		Form:      ComposeForm{Subject: "Re", Body: "b"},
	})
	if !errors.Is(err, ErrParentNotFound) || !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound at both levels, got %v", err)
	}

	n, err := st.Count(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("orphan reply persisted: %d messages", n)
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := setupTestService(t, WithClock(clock.Now))
	a, b := svc.Client(alice), svc.Client(bob)
	msg := mustSend(t, a, bob, "s", "b")

	clock.Advance(time.Minute)
	firstRead := clock.Now()
	if err := b.MarkRead(ctx, msg.GetID()); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	clock.Advance(time.Hour)
	if err := b.MarkRead(ctx, msg.GetID()); err != nil {
		t.Fatalf("second mark read: %v", err)
	}

	got, err := b.Get(ctx, msg.GetID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsNew() {
		t.Fatal("message should be read")
	}
	if !got.GetReadAt().Equal(firstRead) {
		t.Errorf("read_at = %v, want first read %v", got.GetReadAt(), firstRead)
	}

	if err := a.MarkRead(ctx, msg.GetID()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("sender mark read: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Client(carol).MarkRead(ctx, msg.GetID()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger mark read: expected ErrUnauthorized, got %v", err)
	}
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	a, b := svc.Client(alice), svc.Client(bob)
	msg := mustSend(t, a, bob, "s", "b")

	got, err := a.Read(ctx, msg.GetID())
	if err != nil {
		t.Fatalf("sender read: %v", err)
	}
	if !got.IsNew() {
		t.Error("sender opening a message must not mark it read")
	}

	got, err = b.Read(ctx, msg.GetID())
	if err != nil {
		t.Fatalf("recipient read: %v", err)
	}
	if got.IsNew() {
		t.Error("recipient opening a message should mark it read")
	}
}

func TestDeleteRestore(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	a, b := svc.Client(alice), svc.Client(bob)
	msg := mustSend(t, a, bob, "s", "b")

	if err := b.Delete(ctx, msg.GetID()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	inbox, _ := b.Inbox(ctx, ListOptions{})
	trash, _ := b.Trash(ctx, ListOptions{})
	outbox, _ := a.Outbox(ctx, ListOptions{})
	if len(inbox.All()) != 0 || len(trash.All()) != 1 {
		t.Errorf("bob inbox=%d trash=%d, want 0 and 1", len(inbox.All()), len(trash.All()))
	}
	if len(outbox.All()) != 1 {
		t.Errorf("alice outbox=%d, recipient delete must not affect sender", len(outbox.All()))
	}

	got, err := b.Get(ctx, msg.GetID())
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got.GetRecipientDeletedAt() == nil || got.GetSenderDeletedAt() != nil {
		t.Error("only the recipient marker should be set")
	}

	if err := b.Delete(ctx, msg.GetID()); !errors.Is(err, ErrAlreadyInTrash) {
		t.Errorf("expected ErrAlreadyInTrash, got %v", err)
	}
	if err := a.Restore(ctx, msg.GetID()); !errors.Is(err, ErrNotInTrash) {
		t.Errorf("expected ErrNotInTrash, got %v", err)
	}
	if err := svc.Client(carol).Delete(ctx, msg.GetID()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	if err := b.Restore(ctx, msg.GetID()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	inbox, _ = b.Inbox(ctx, ListOptions{})
	if len(inbox.All()) != 1 {
		t.Errorf("restored message missing from inbox")
	}
}

func TestMessageToSelf(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	a := svc.Client(alice)
	msg := mustSend(t, a, alice, "note", "to self")

	if msg.Party() != store.PartySender|store.PartyRecipient {
		t.Errorf("party = %v, want both", msg.Party())
	}

	inbox, _ := a.Inbox(ctx, ListOptions{})
	outbox, _ := a.Outbox(ctx, ListOptions{})
	if len(inbox.All()) != 1 || len(outbox.All()) != 1 {
		t.Fatalf("inbox=%d outbox=%d, want 1 each", len(inbox.All()), len(outbox.All()))
	}

	if err := a.Delete(ctx, msg.GetID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	trash, _ := a.Trash(ctx, ListOptions{})
	if len(trash.All()) != 1 {
		t.Errorf("trash = %d, want the message once", len(trash.All()))
	}

	r, err := a.Reply(ctx, msg.GetID(), ComposeForm{Subject: "again", Body: "b"})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if r.GetRecipient() != alice {
		t.Errorf("self reply recipient = %v", r.GetRecipient())
	}
}

func TestMessageHandle(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	b := svc.Client(bob)
	mustSend(t, svc.Client(alice), bob, "s", "b")

	inbox, err := b.Inbox(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	msg := inbox.All()[0]
	snapshot := msg.Clone()

	if err := msg.MarkRead(ctx); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := msg.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !snapshot.IsNew() || snapshot.GetRecipientDeletedAt() != nil {
		t.Error("clone should keep the state at retrieval time")
	}
	if err := msg.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, _ := b.Get(ctx, msg.GetID())
	if got.IsNew() || got.GetRecipientDeletedAt() != nil {
		t.Error("expected read and restored")
	}
}

func TestStream(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := setupTestService(t, WithClock(clock.Now))
	a, b := svc.Client(alice), svc.Client(bob)

	const total = 7
	for range total {
		mustSend(t, a, bob, "s", "b")
		clock.Advance(time.Second)
	}

	iter, err := b.Stream(ctx, FolderInbox, StreamOptions{BatchSize: 3})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if _, err := iter.Message(); !errors.Is(err, ErrIteratorOutOfBounds) {
		t.Errorf("expected ErrIteratorOutOfBounds before Next, got %v", err)
	}

	seen := make(map[string]bool)
	var last time.Time
	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		msg, err := iter.Message()
		if err != nil {
			t.Fatalf("message: %v", err)
		}
		if msg.GetSentAt().Before(last) {
			t.Error("stream out of order")
		}
		last = msg.GetSentAt()
		seen[msg.GetID()] = true
	}
	if len(seen) != total {
		t.Errorf("streamed %d messages, want %d", len(seen), total)
	}

	if _, err := b.Stream(ctx, Folder("archive"), StreamOptions{}); !errors.Is(err, ErrFilterInvalid) {
		t.Errorf("expected ErrFilterInvalid, got %v", err)
	}
}

func TestStreamWhileDeleting(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := setupTestService(t, WithClock(clock.Now))
	a, b := svc.Client(alice), svc.Client(bob)

	const total = 5
	for range total {
		mustSend(t, a, bob, "s", "b")
		clock.Advance(time.Second)
	}

	iter, err := b.Stream(ctx, FolderInbox, StreamOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	visited := 0
	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		msg, _ := iter.Message()
		if err := b.Delete(ctx, msg.GetID()); err != nil {
			t.Fatalf("delete: %v", err)
		}
		visited++
	}
	if visited != total {
		t.Errorf("stream visited %d of %d messages", visited, total)
	}

	inbox, err := b.Inbox(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if n := len(inbox.All()); n != 0 {
		t.Errorf("inbox still holds %d messages", n)
	}
}

func TestBulkOperations(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	a, b := svc.Client(alice), svc.Client(bob)

	ids := []string{
		mustSend(t, a, bob, "one", "b").GetID(),
		mustSend(t, a, bob, "two", "b").GetID(),
	}

	result, err := b.BulkMarkRead(ctx, append(ids, "no-such-id"))
	var bulkErr *BulkOperationError
	if !errors.As(err, &bulkErr) {
		t.Fatalf("expected BulkOperationError, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("bulk error should unwrap to ErrNotFound, got %v", err)
	}
	if result.SuccessCount() != 2 || result.FailureCount() != 1 {
		t.Errorf("success=%d failure=%d", result.SuccessCount(), result.FailureCount())
	}
	if failed := result.FailedIDs(); len(failed) != 1 || failed[0] != "no-such-id" {
		t.Errorf("failed ids = %v", failed)
	}

	inbox, err := b.Inbox(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	res, err := inbox.Delete(ctx)
	if err != nil {
		t.Fatalf("list delete: %v", err)
	}
	if res.SuccessCount() != 2 {
		t.Errorf("deleted %d, want 2", res.SuccessCount())
	}

	trash, _ := b.Trash(ctx, ListOptions{})
	if _, err := trash.Restore(ctx); err != nil {
		t.Fatalf("list restore: %v", err)
	}
	if _, err := trash.MarkRead(ctx); err != nil {
		t.Fatalf("list mark read: %v", err)
	}

	if _, err := a.BulkMarkRead(ctx, ids); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("sender bulk mark read: expected ErrUnauthorized, got %v", err)
	}
}

func TestPrincipalResolver(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	err := reg.Register("user", LoaderFunc(func(_ context.Context, id int64) (Principal, error) {
		if id > 2 {
			return nil, ErrPrincipalNotFound
		}
		return Ref("user", id), nil
	}))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := setupTestService(t, WithPrincipalResolver(reg))
	a := svc.Client(alice)

	if _, err := a.Send(ctx, bob, ComposeForm{Subject: "s", Body: "b"}); err != nil {
		t.Errorf("known recipient: %v", err)
	}
	if _, err := a.Send(ctx, carol, ComposeForm{Subject: "s", Body: "b"}); !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("expected ErrPrincipalNotFound, got %v", err)
	}
	if _, err := a.Send(ctx, Ref("team", 1), ComposeForm{Subject: "s", Body: "b"}); !errors.Is(err, ErrUnknownPrincipalType) {
		t.Errorf("expected ErrUnknownPrincipalType, got %v", err)
	}
}

func TestComposeWithOTel(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t, WithOTel(true), WithServiceName("privmsg-test"))
	a, b := svc.Client(alice), svc.Client(bob)

	msg := mustSend(t, a, bob, "s", "b")
	if _, err := b.Read(ctx, msg.GetID()); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := b.Inbox(ctx, ListOptions{}); err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if _, err := svc.Client(carol).Get(ctx, msg.GetID()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
