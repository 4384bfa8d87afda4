package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/privmsg"
)

type person struct {
	id    int64
	name  string
	email string
}

func (p *person) PrincipalType() string { return "user" }
func (p *person) PrincipalID() int64    { return p.id }
func (p *person) DisplayName() string   { return p.name }
func (p *person) EmailAddress() string  { return p.email }

type bot struct{ id int64 }

func (b *bot) PrincipalType() string { return "bot" }
func (b *bot) PrincipalID() int64    { return b.id }

func TestStatic(t *testing.T) {
	ctx := context.Background()
	alice := privmsg.Contact{Ref: privmsg.Ref("user", 1), Name: "Alice", Email: "alice@example.com"}
	r := NewStatic(alice)

	t.Run("known", func(t *testing.T) {
		c, err := r.Contact(ctx, privmsg.Ref("user", 1))
		if err != nil {
			t.Fatalf("Contact: %v", err)
		}
		if *c != alice {
			t.Errorf("got %+v, want %+v", *c, alice)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := r.Contact(ctx, privmsg.Ref("user", 2))
		if !errors.Is(err, privmsg.ErrPrincipalNotFound) {
			t.Errorf("expected ErrPrincipalNotFound, got %v", err)
		}
	})

	t.Run("returned contact is a copy", func(t *testing.T) {
		c, _ := r.Contact(ctx, privmsg.Ref("user", 1))
		c.Email = "changed@example.com"
		again, _ := r.Contact(ctx, privmsg.Ref("user", 1))
		if again.Email != alice.Email {
			t.Errorf("stored contact was mutated: %q", again.Email)
		}
	})
}

func TestFromPrincipals(t *testing.T) {
	ctx := context.Background()
	reg := privmsg.NewRegistry()
	if err := reg.Register("user", privmsg.LoaderFunc(func(_ context.Context, id int64) (privmsg.Principal, error) {
		if id != 1 {
			return nil, privmsg.ErrPrincipalNotFound
		}
		return &person{id: 1, name: "Alice", email: "alice@example.com"}, nil
	})); err != nil {
		t.Fatalf("Register user: %v", err)
	}
	if err := reg.Register("bot", privmsg.LoaderFunc(func(_ context.Context, id int64) (privmsg.Principal, error) {
		return &bot{id: id}, nil
	})); err != nil {
		t.Fatalf("Register bot: %v", err)
	}
	r := NewFromPrincipals(reg)

	tests := []struct {
		name    string
		ref     privmsg.PrincipalRef
		want    string
		wantErr error
	}{
		{"addressable", privmsg.Ref("user", 1), "alice@example.com", nil},
		{"missing", privmsg.Ref("user", 9), "", privmsg.ErrPrincipalNotFound},
		{"not addressable", privmsg.Ref("bot", 3), "", privmsg.ErrNoContact},
		{"unknown type", privmsg.Ref("group", 1), "", privmsg.ErrUnknownPrincipalType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.Contact(ctx, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Contact: %v", err)
			}
			if c.Email != tt.want || c.Ref != tt.ref {
				t.Errorf("got %+v", c)
			}
		})
	}
}
