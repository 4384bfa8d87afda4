// Package storetest provides a conformance suite run against every
// store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rbaliyan/privmsg/store"
)

// Factory returns a connected store with no messages. Cleanup should be
// registered on t.
type Factory func(t *testing.T) store.Store

var (
	alice = store.Ref("user", 1)
	bob   = store.Ref("user", 2)
	carol = store.Ref("team", 1)
)

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"ReplyStampsParent", testReplyStampsParent},
		{"ReplyMissingParent", testReplyMissingParent},
		{"MarkReadIsMonotonic", testMarkReadMonotonic},
		{"FolderViews", testFolderViews},
		{"TrashNoDuplicates", testTrashNoDuplicates},
		{"ClearDeleted", testClearDeleted},
		{"Ordering", testOrdering},
		{"Pagination", testPagination},
		{"CursorLeftFolder", testCursorLeftFolder},
		{"Replies", testReplies},
		{"Stats", testStats},
		{"NotConnected", testNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func create(t *testing.T, s store.Store, from, to store.PrincipalRef, subject string, at time.Time) store.Message {
	t.Helper()
	m, err := s.CreateMessage(context.Background(), store.MessageData{
		Sender: from, Recipient: to, Subject: subject, Body: "body of " + subject, SentAt: at,
	})
	if err != nil {
		t.Fatalf("CreateMessage(%s): %v", subject, err)
	}
	return m
}

func get(t *testing.T, s store.Store, id string) store.Message {
	t.Helper()
	m, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return m
}

func find(t *testing.T, s store.Store, owner store.PrincipalRef, folder store.Folder) []store.Message {
	t.Helper()
	filters, err := store.FolderFilters(owner, folder)
	if err != nil {
		t.Fatalf("FolderFilters: %v", err)
	}
	list, err := s.Find(context.Background(), filters, store.ListOptions{})
	if err != nil {
		t.Fatalf("Find(%s): %v", folder, err)
	}
	return list.Messages
}

func ids(msgs []store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.GetID()
	}
	return out
}

func sameIDs(got []store.Message, want ...store.Message) error {
	if len(got) != len(want) {
		return fmt.Errorf("got %d messages %v, want %d", len(got), ids(got), len(want))
	}
	for i := range want {
		if got[i].GetID() != want[i].GetID() {
			return fmt.Errorf("position %d: got %s, want %s", i, got[i].GetID(), want[i].GetID())
		}
	}
	return nil
}

func base() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testCreateAndGet(t *testing.T, s store.Store) {
	at := base()
	m := create(t, s, alice, bob, "Hi", at)
	if m.GetID() == "" {
		t.Fatal("expected an id")
	}

	got := get(t, s, m.GetID())
	if got.GetSubject() != "Hi" || got.GetBody() != "body of Hi" {
		t.Errorf("unexpected content: %q / %q", got.GetSubject(), got.GetBody())
	}
	if got.GetSender() != alice || got.GetRecipient() != bob {
		t.Errorf("unexpected parties: %v -> %v", got.GetSender(), got.GetRecipient())
	}
	if !got.GetSentAt().Equal(at) {
		t.Errorf("sent_at = %v, want %v", got.GetSentAt(), at)
	}
	if got.GetReadAt() != nil || got.GetRepliedAt() != nil {
		t.Error("new message must be unread and unreplied")
	}
	if got.GetSenderDeletedAt() != nil || got.GetRecipientDeletedAt() != nil {
		t.Error("new message must not be deleted")
	}
	if got.GetParentID() != "" {
		t.Errorf("root message has parent %q", got.GetParentID())
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	m := create(t, s, alice, bob, "probe", base())
	// Derive a well-formed id for this backend that is not stored.
	missing := m.GetID()
	missing = missing[:len(missing)-1] + flip(missing[len(missing)-1])

	_, err := s.Get(context.Background(), missing)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}

func testReplyStampsParent(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent := create(t, s, alice, bob, "Hi", base())

	replyAt := base().Add(time.Hour)
	reply, err := s.CreateMessage(ctx, store.MessageData{
		Sender: bob, Recipient: alice, Subject: "Re: Hi", Body: "Hello back",
		ParentID: parent.GetID(), SentAt: replyAt,
	})
	if err != nil {
		t.Fatalf("CreateMessage(reply): %v", err)
	}
	if reply.GetParentID() != parent.GetID() {
		t.Errorf("reply parent = %q, want %q", reply.GetParentID(), parent.GetID())
	}

	p := get(t, s, parent.GetID())
	if p.GetRepliedAt() == nil {
		t.Fatal("parent replied_at not set")
	}
	if !p.GetRepliedAt().Equal(replyAt) {
		t.Errorf("parent replied_at = %v, want %v", p.GetRepliedAt(), replyAt)
	}
}

func testReplyMissingParent(t *testing.T, s store.Store) {
	ctx := context.Background()
	probe := create(t, s, alice, bob, "probe", base())
	missing := probe.GetID()
	missing = missing[:len(missing)-1] + flip(missing[len(missing)-1])

	_, err := s.CreateMessage(ctx, store.MessageData{
		Sender: bob, Recipient: alice, Subject: "orphan", Body: "x",
		ParentID: missing, SentAt: base().Add(time.Minute),
	})
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Fatalf("error = %v, want ErrParentNotFound", err)
	}

	n, err := s.Count(ctx, store.SenderIs(bob))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("orphan reply was persisted (%d rows)", n)
	}
}

func testMarkReadMonotonic(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := create(t, s, alice, bob, "Hi", base())

	first := base().Add(time.Minute)
	if err := s.MarkRead(ctx, m.GetID(), first); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := s.MarkRead(ctx, m.GetID(), first.Add(time.Hour)); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}

	got := get(t, s, m.GetID())
	if got.GetReadAt() == nil || !got.GetReadAt().Equal(first) {
		t.Errorf("read_at = %v, want %v", got.GetReadAt(), first)
	}
	if store.IsNew(got) {
		t.Error("message should no longer be new")
	}
}

func testFolderViews(t *testing.T, s store.Store) {
	ctx := context.Background()
	m1 := create(t, s, alice, bob, "one", base())
	m2 := create(t, s, alice, bob, "two", base().Add(time.Second))

	if err := s.MarkDeleted(ctx, m1.GetID(), store.PartyRecipient, base().Add(time.Minute)); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}

	if err := sameIDs(find(t, s, bob, store.FolderInbox), m2); err != nil {
		t.Errorf("bob inbox: %v", err)
	}
	if err := sameIDs(find(t, s, bob, store.FolderTrash), m1); err != nil {
		t.Errorf("bob trash: %v", err)
	}
	// A recipient-side delete leaves the sender's outbox untouched.
	if err := sameIDs(find(t, s, alice, store.FolderOutbox), m1, m2); err != nil {
		t.Errorf("alice outbox: %v", err)
	}
	if got := find(t, s, alice, store.FolderTrash); len(got) != 0 {
		t.Errorf("alice trash should be empty, got %v", ids(got))
	}
	if got := find(t, s, carol, store.FolderInbox); len(got) != 0 {
		t.Errorf("carol inbox should be empty, got %v", ids(got))
	}
}

func testTrashNoDuplicates(t *testing.T, s store.Store) {
	ctx := context.Background()
	self := create(t, s, alice, alice, "note to self", base())

	if err := s.MarkDeleted(ctx, self.GetID(), store.PartySender|store.PartyRecipient, base().Add(time.Minute)); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	if err := sameIDs(find(t, s, alice, store.FolderTrash), self); err != nil {
		t.Errorf("alice trash: %v", err)
	}
	if got := find(t, s, alice, store.FolderInbox); len(got) != 0 {
		t.Errorf("alice inbox should be empty, got %v", ids(got))
	}
}

func testClearDeleted(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := create(t, s, alice, bob, "Hi", base())
	if err := s.MarkDeleted(ctx, m.GetID(), store.PartySender, base().Add(time.Minute)); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	if err := s.ClearDeleted(ctx, m.GetID(), store.PartySender); err != nil {
		t.Fatalf("ClearDeleted: %v", err)
	}
	if got := get(t, s, m.GetID()); got.GetSenderDeletedAt() != nil {
		t.Error("sender_deleted_at should be cleared")
	}
	if err := s.MarkDeleted(ctx, m.GetID(), 0, base()); !errors.Is(err, store.ErrInvalidParty) {
		t.Errorf("MarkDeleted(no party) error = %v, want ErrInvalidParty", err)
	}
}

func testOrdering(t *testing.T, s store.Store) {
	late := create(t, s, alice, bob, "late", base().Add(2*time.Hour))
	early := create(t, s, alice, bob, "early", base())
	mid := create(t, s, alice, bob, "mid", base().Add(time.Hour))

	if err := sameIDs(find(t, s, bob, store.FolderInbox), early, mid, late); err != nil {
		t.Errorf("ascending: %v", err)
	}

	filters, _ := store.FolderFilters(bob, store.FolderInbox)
	list, err := s.Find(context.Background(), filters, store.ListOptions{SortOrder: store.SortDesc})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if err := sameIDs(list.Messages, late, mid, early); err != nil {
		t.Errorf("descending: %v", err)
	}
}

func testPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	var all []store.Message
	for i := range 5 {
		all = append(all, create(t, s, alice, bob, fmt.Sprintf("m%d", i), base().Add(time.Duration(i)*time.Minute)))
	}
	filters, _ := store.FolderFilters(bob, store.FolderInbox)

	page, err := s.Find(ctx, filters, store.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if page.Total != 5 || !page.HasMore {
		t.Errorf("first page total=%d hasMore=%v", page.Total, page.HasMore)
	}
	if err := sameIDs(page.Messages, all[0], all[1]); err != nil {
		t.Errorf("first page: %v", err)
	}

	next, err := s.Find(ctx, filters, store.ListOptions{Limit: 2, StartAfter: page.NextCursor})
	if err != nil {
		t.Fatalf("Find(cursor): %v", err)
	}
	if err := sameIDs(next.Messages, all[2], all[3]); err != nil {
		t.Errorf("cursor page: %v", err)
	}

	last, err := s.Find(ctx, filters, store.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Find(offset): %v", err)
	}
	if err := sameIDs(last.Messages, all[4]); err != nil {
		t.Errorf("offset page: %v", err)
	}
	if last.HasMore {
		t.Error("last page should not have more")
	}
}

func testCursorLeftFolder(t *testing.T, s store.Store) {
	ctx := context.Background()
	var all []store.Message
	for i := range 5 {
		all = append(all, create(t, s, alice, bob, fmt.Sprintf("m%d", i), base().Add(time.Duration(i)*time.Minute)))
	}
	filters, _ := store.FolderFilters(bob, store.FolderInbox)

	for _, order := range []store.SortOrder{store.SortAsc, store.SortDesc} {
		page, err := s.Find(ctx, filters, store.ListOptions{Limit: 2, SortOrder: order})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		// Trash the whole first page, cursor included.
		for _, m := range page.Messages {
			if err := s.MarkDeleted(ctx, m.GetID(), store.PartyRecipient, base().Add(time.Hour)); err != nil {
				t.Fatalf("MarkDeleted: %v", err)
			}
		}

		next, err := s.Find(ctx, filters, store.ListOptions{Limit: 2, SortOrder: order, StartAfter: page.NextCursor})
		if err != nil {
			t.Fatalf("Find(cursor): %v", err)
		}
		want := []store.Message{all[2], all[3]}
		if order == store.SortDesc {
			want = []store.Message{all[2], all[1]}
		}
		if err := sameIDs(next.Messages, want...); err != nil {
			t.Errorf("order %d: page after trashed cursor: %v", order, err)
		}

		for _, m := range page.Messages {
			if err := s.ClearDeleted(ctx, m.GetID(), store.PartyRecipient); err != nil {
				t.Fatalf("ClearDeleted: %v", err)
			}
		}
	}
}

func testReplies(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent := create(t, s, alice, bob, "Hi", base())
	other := create(t, s, alice, bob, "Other", base())

	var replies []store.Message
	for i, from := range []store.PrincipalRef{bob, alice} {
		r, err := s.CreateMessage(ctx, store.MessageData{
			Sender: from, Recipient: store.Counterpart(parent, from), Subject: "Re: Hi", Body: "r",
			ParentID: parent.GetID(), SentAt: base().Add(time.Duration(i+1) * time.Minute),
		})
		if err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
		replies = append(replies, r)
	}

	list, err := s.Find(ctx, []store.Filter{store.ParentIs(parent.GetID())}, store.ListOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if err := sameIDs(list.Messages, replies...); err != nil {
		t.Errorf("replies: %v", err)
	}

	// Last reply wins.
	p := get(t, s, parent.GetID())
	if p.GetRepliedAt() == nil || !p.GetRepliedAt().Equal(replies[1].GetSentAt()) {
		t.Errorf("parent replied_at = %v, want %v", p.GetRepliedAt(), replies[1].GetSentAt())
	}
	if got := get(t, s, other.GetID()); got.GetRepliedAt() != nil {
		t.Error("unrelated message was stamped")
	}
}

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	read := create(t, s, alice, bob, "read", base())
	create(t, s, alice, bob, "unread", base().Add(time.Second))
	trashed := create(t, s, alice, bob, "trashed", base().Add(2*time.Second))
	create(t, s, bob, alice, "sent", base().Add(3*time.Second))

	if err := s.MarkRead(ctx, read.GetID(), base().Add(time.Minute)); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := s.MarkDeleted(ctx, trashed.GetID(), store.PartyRecipient, base().Add(time.Minute)); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}

	stats, err := s.MailboxStats(ctx, bob)
	if err != nil {
		t.Fatalf("MailboxStats: %v", err)
	}
	want := store.MailboxStats{Inbox: 2, Unread: 1, Outbox: 1, Trash: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	unread := append(store.RecipientIs(bob), store.RecipientDeleted(false), store.Unread())
	n, err := s.Count(ctx, unread)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("unread count = %d, want 1", n)
	}
}

func testNotConnected(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := s.Find(ctx, nil, store.ListOptions{})
	if !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("Find after Close error = %v, want ErrNotConnected", err)
	}
}
