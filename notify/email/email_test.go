package email

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbaliyan/privmsg"
	"github.com/rbaliyan/privmsg/resolver"
	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store"
	"github.com/rbaliyan/privmsg/store/memory"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (s *recordingSender) Send(_ context.Context, m Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *recordingSender) mails() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

type testMessage struct {
	parentID string
}

func (m *testMessage) GetID() string                     { return "m1" }
func (m *testMessage) GetSubject() string                { return "Hi" }
func (m *testMessage) GetBody() string                   { return "Hello there" }
func (m *testMessage) GetSender() store.PrincipalRef     { return store.Ref("user", 1) }
func (m *testMessage) GetRecipient() store.PrincipalRef  { return store.Ref("user", 2) }
func (m *testMessage) GetParentID() string               { return m.parentID }
func (m *testMessage) GetSentAt() time.Time              { return time.Unix(0, 0).UTC() }
func (m *testMessage) GetReadAt() *time.Time             { return nil }
func (m *testMessage) GetRepliedAt() *time.Time          { return nil }
func (m *testMessage) GetSenderDeletedAt() *time.Time    { return nil }
func (m *testMessage) GetRecipientDeletedAt() *time.Time { return nil }

var contacts = resolver.NewStatic(
	privmsg.Contact{Ref: privmsg.Ref("user", 1), Name: "Alice", Email: "alice@example.com"},
	privmsg.Contact{Ref: privmsg.Ref("user", 2), Name: "Bob", Email: "bob@example.com"},
	privmsg.Contact{Ref: privmsg.Ref("user", 3), Name: "Carol"},
)

func newTestNotifier(t *testing.T, sender Sender, opts ...Option) *Notifier {
	t.Helper()
	opts = append([]Option{WithFrom("privmsg@example.com")}, opts...)
	n, err := New(contacts, sender, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNew(t *testing.T) {
	t.Run("requires collaborators", func(t *testing.T) {
		if _, err := New(nil, &recordingSender{}); err == nil {
			t.Error("expected error without contact resolver")
		}
		if _, err := New(contacts, nil); err == nil {
			t.Error("expected error without sender")
		}
	})

	t.Run("rejects bad template", func(t *testing.T) {
		if _, err := New(contacts, &recordingSender{}, WithBodyTemplate("{{.Missing")); err == nil {
			t.Error("expected template parse error")
		}
	})
}

func TestNotify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		kind        privmsg.NotificationKind
		to          privmsg.PrincipalRef
		parentID    string
		wantMail    bool
		wantSubject string
	}{
		{"received", privmsg.KindReceived, privmsg.Ref("user", 2), "", true, "New message: Hi"},
		{"reply received", privmsg.KindReplyReceived, privmsg.Ref("user", 2), "p1", true, "New reply: Hi"},
		{"sent is ignored", privmsg.KindSent, privmsg.Ref("user", 1), "", false, ""},
		{"replied is ignored", privmsg.KindReplied, privmsg.Ref("user", 1), "p1", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			n := newTestNotifier(t, sender)
			err := n.Notify(ctx, privmsg.Notification{
				Kind:    tt.kind,
				To:      tt.to,
				Message: &testMessage{parentID: tt.parentID},
			})
			if err != nil {
				t.Fatalf("Notify: %v", err)
			}
			mails := sender.mails()
			if !tt.wantMail {
				if len(mails) != 0 {
					t.Errorf("expected no mail, got %d", len(mails))
				}
				return
			}
			if len(mails) != 1 {
				t.Fatalf("expected 1 mail, got %d", len(mails))
			}
			m := mails[0]
			if m.To != "bob@example.com" || m.From != "privmsg@example.com" {
				t.Errorf("unexpected envelope: %+v", m)
			}
			if m.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", m.Subject, tt.wantSubject)
			}
			if !strings.Contains(m.Body, "Hello Bob") || !strings.Contains(m.Body, "Hello there") {
				t.Errorf("unexpected body: %q", m.Body)
			}
		})
	}
}

func TestNotifyMissingAddressIsPermanent(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	n := newTestNotifier(t, sender)

	for _, to := range []privmsg.PrincipalRef{privmsg.Ref("user", 3), privmsg.Ref("user", 99)} {
		err := n.Notify(ctx, privmsg.Notification{Kind: privmsg.KindReceived, To: to, Message: &testMessage{}})
		if !retry.IsPermanent(err) {
			t.Errorf("%s: expected permanent error, got %v", to, err)
		}
	}
	if len(sender.mails()) != 0 {
		t.Error("no mail should be sent")
	}
}

func TestNotifySendFailureIsRetryable(t *testing.T) {
	boom := errors.New("connection refused")
	n := newTestNotifier(t, &recordingSender{err: boom})

	err := n.Notify(context.Background(), privmsg.Notification{
		Kind:    privmsg.KindReceived,
		To:      privmsg.Ref("user", 2),
		Message: &testMessage{},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
	if retry.IsPermanent(err) {
		t.Error("send failure should be retryable")
	}
	if !privmsg.IsRetryableError(err) {
		t.Error("IsRetryableError should accept a transport failure")
	}
}

func TestNotifyRateLimitHonorsContext(t *testing.T) {
	sender := &recordingSender{}
	n := newTestNotifier(t, sender, WithRateLimit(0.001, 1))
	note := privmsg.Notification{Kind: privmsg.KindReceived, To: privmsg.Ref("user", 2), Message: &testMessage{}}

	if err := n.Notify(context.Background(), note); err != nil {
		t.Fatalf("first Notify: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Notify(ctx, note); err == nil {
		t.Fatal("expected rate limit error")
	}
	if got := len(sender.mails()); got != 1 {
		t.Errorf("sent %d mails, want 1", got)
	}
}

func TestMailBytes(t *testing.T) {
	m := Mail{
		From:    "a@example.com",
		To:      "b@example.com",
		Subject: "Hi\r\nBcc: evil@example.com",
		Body:    "line1\nline2",
	}
	raw := string(m.Bytes())
	if strings.Contains(raw, "\r\nBcc:") {
		t.Error("subject injected a header")
	}
	if !strings.Contains(raw, "line1\r\nline2") {
		t.Errorf("body not CRLF encoded: %q", raw)
	}
	if !strings.Contains(raw, "Content-Type: text/plain; charset=UTF-8\r\n") {
		t.Error("missing content type")
	}
}

func TestNewSMTPSender(t *testing.T) {
	if _, err := NewSMTPSender("no-port", "", ""); err == nil {
		t.Error("expected error for address without port")
	}
	s, err := NewSMTPSender("smtp.example.com:587", "user", "secret")
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	if s.auth == nil {
		t.Error("expected auth when username is set")
	}
}

func TestNotifierWithService(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	n := newTestNotifier(t, sender)

	svc, err := privmsg.New(
		privmsg.WithStore(memory.New()),
		privmsg.WithNotifier(n),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer svc.Close(ctx)

	alice := svc.Client(privmsg.Ref("user", 1))
	msg, err := alice.Send(ctx, privmsg.Ref("user", 2), privmsg.ComposeForm{Subject: "Hi", Body: "Hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	bob := svc.Client(privmsg.Ref("user", 2))
	if _, err := bob.Reply(ctx, msg.GetID(), privmsg.ComposeForm{Subject: "Re: Hi", Body: "Hey"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	mails := sender.mails()
	if len(mails) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(mails))
	}
	if mails[0].To != "bob@example.com" || mails[1].To != "alice@example.com" {
		t.Errorf("unexpected recipients: %q, %q", mails[0].To, mails[1].To)
	}
	if !strings.HasPrefix(mails[1].Subject, "New reply") {
		t.Errorf("reply subject = %q", mails[1].Subject)
	}
}
