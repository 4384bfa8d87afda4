// Package privmsg provides private messaging between principals.
//
// A message has exactly one sender and one recipient. Each principal sees
// three folders derived from the soft-delete markers on the message:
// Inbox (received, not deleted), Outbox (sent, not deleted) and Trash
// (deleted by the principal from either side). Deleting only affects the
// caller's view; the other party keeps theirs.
//
// # Basic Usage
//
//	svc, err := privmsg.New(
//	    privmsg.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	alice := svc.Client(privmsg.Ref("user", 1))
//	msg, err := alice.Send(ctx, privmsg.Ref("user", 2), privmsg.ComposeForm{
//	    Subject: "Hi",
//	    Body:    "Hello",
//	})
//
//	bob := svc.Client(privmsg.Ref("user", 2))
//	inbox, _ := bob.Inbox(ctx, privmsg.ListOptions{})
//	reply, err := bob.Reply(ctx, msg.GetID(), privmsg.ComposeForm{Subject: "Re: Hi", Body: "Hey"})
//
// # Principals
//
// Senders and recipients are any type implementing Principal. They are
// stored as a (type, id) PrincipalRef. Configure WithPrincipalResolver
// (for example a Registry) to require both sides to exist at compose time.
//
// # Replies
//
// Replying stores the new message and stamps the parent's replied_at in
// one atomic write. A reply to a missing parent fails with
// ErrParentNotFound and stores nothing.
//
// # Notifications
//
// With a Notifier configured, every compose produces two notifications
// after commit:
//
//   - messages_sent / messages_replied to the author
//   - messages_received / messages_reply_received to the other party
//
// Delivery is retried and failures go to the handler set with
// WithNotifyFailureHandler; they never fail the compose. The notify/inapp
// package publishes to an event bus and notify/email sends mail.
//
// # Storage Backends
//
// The store package defines the Store interface with implementations in
// store/memory, store/sqlite, store/postgres, store/mongo and store/pebble.
package privmsg
