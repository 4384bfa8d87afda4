package memory

import (
	"context"
	"testing"

	"github.com/rbaliyan/privmsg/store"
	"github.com/rbaliyan/privmsg/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New()
		if err := s.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	})
}

func TestConnectTwice(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect(ctx); err != store.ErrAlreadyConnected {
		t.Errorf("second Connect error = %v, want ErrAlreadyConnected", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Connect(ctx)

	m, err := s.CreateMessage(ctx, store.MessageData{
		Sender: store.Ref("user", 1), Recipient: store.Ref("user", 2), Subject: "Hi", Body: "x",
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := s.MarkRead(ctx, m.GetID(), m.GetSentAt()); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if m.GetReadAt() != nil {
		t.Error("previously returned message must not observe later writes")
	}
}
