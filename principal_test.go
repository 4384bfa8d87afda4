package privmsg

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// testUser is a principal backed by an application type.
type testUser struct {
	id    int64
	name  string
	email string
}

func (u testUser) PrincipalType() string { return "user" }
func (u testUser) PrincipalID() int64    { return u.id }
func (u testUser) DisplayName() string   { return u.name }
func (u testUser) EmailAddress() string  { return u.email }

var _ Addressable = testUser{}

func TestPrincipalRef(t *testing.T) {
	ref := Ref("user", 42)
	if ref.String() != "user:42" {
		t.Errorf("String() = %q", ref.String())
	}
	if RefOf(testUser{id: 42}) != ref {
		t.Error("RefOf should build the same reference")
	}
	if RefOf(nil) != (PrincipalRef{}) {
		t.Error("RefOf(nil) should be zero")
	}

	tests := []struct {
		in      string
		want    PrincipalRef
		wantErr bool
	}{
		{"user:42", ref, false},
		{"team:7", Ref("team", 7), false},
		{"user", PrincipalRef{}, true},
		{"user:abc", PrincipalRef{}, true},
		{":1", PrincipalRef{}, true},
		{"user:0", PrincipalRef{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrincipalRef(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPrincipal) {
					t.Errorf("expected ErrInvalidPrincipal, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	users := map[int64]testUser{1: {id: 1, name: "Alice"}}
	reg := NewRegistry()

	err := reg.Register("user", LoaderFunc(func(_ context.Context, id int64) (Principal, error) {
		u, ok := users[id]
		if !ok {
			return nil, ErrPrincipalNotFound
		}
		return u, nil
	}))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("duplicate type", func(t *testing.T) {
		err := reg.Register("user", LoaderFunc(func(context.Context, int64) (Principal, error) { return nil, nil }))
		if err == nil {
			t.Error("expected error for duplicate registration")
		}
	})

	t.Run("invalid registration", func(t *testing.T) {
		if err := reg.Register("", LoaderFunc(nil)); err == nil {
			t.Error("expected error for empty type")
		}
		if err := reg.Register("bad:type", LoaderFunc(func(context.Context, int64) (Principal, error) { return nil, nil })); !errors.Is(err, ErrInvalidPrincipal) {
			t.Errorf("expected ErrInvalidPrincipal, got %v", err)
		}
	})

	t.Run("types", func(t *testing.T) {
		if got := reg.Types(); !slices.Equal(got, []string{"user"}) {
			t.Errorf("Types() = %v", got)
		}
	})

	tests := []struct {
		name    string
		ref     PrincipalRef
		wantErr error
	}{
		{"known", Ref("user", 1), nil},
		{"unknown id", Ref("user", 2), ErrPrincipalNotFound},
		{"unknown type", Ref("team", 1), ErrUnknownPrincipalType},
		{"invalid ref", Ref("user", 0), ErrInvalidPrincipal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := reg.Resolve(ctx, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if RefOf(p) != tt.ref {
				t.Errorf("resolved %v, want %v", RefOf(p), tt.ref)
			}
			if a, ok := p.(Addressable); !ok || a.DisplayName() != "Alice" {
				t.Errorf("resolved principal lost its concrete type: %#v", p)
			}
		})
	}

	t.Run("nil principal", func(t *testing.T) {
		nilReg := NewRegistry()
		_ = nilReg.Register("user", LoaderFunc(func(context.Context, int64) (Principal, error) { return nil, nil }))
		if _, err := nilReg.Resolve(ctx, Ref("user", 1)); !errors.Is(err, ErrPrincipalNotFound) {
			t.Errorf("expected ErrPrincipalNotFound, got %v", err)
		}
	})
}

func TestClientWithCustomPrincipal(t *testing.T) {
	svc := setupTestService(t)
	u := testUser{id: 1, name: "Alice"}
	msg := mustSend(t, svc.Client(u), bob, "s", "b")
	if msg.GetSender() != alice {
		t.Errorf("sender = %v, want %v", msg.GetSender(), alice)
	}
}
