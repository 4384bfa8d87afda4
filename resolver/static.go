// Package resolver provides ContactResolver implementations.
package resolver

import (
	"context"
	"fmt"

	"github.com/rbaliyan/privmsg"
)

// Static is a map-based ContactResolver for testing and simple deployments.
// Safe for concurrent use (read-only after creation).
type Static struct {
	contacts map[privmsg.PrincipalRef]privmsg.Contact
}

var _ privmsg.ContactResolver = (*Static)(nil)

// NewStatic creates a Static resolver. The contacts are copied and keyed
// by their Ref.
func NewStatic(contacts ...privmsg.Contact) *Static {
	m := make(map[privmsg.PrincipalRef]privmsg.Contact, len(contacts))
	for _, c := range contacts {
		m[c.Ref] = c
	}
	return &Static{contacts: m}
}

// Contact returns the contact registered for ref.
func (s *Static) Contact(_ context.Context, ref privmsg.PrincipalRef) (*privmsg.Contact, error) {
	c, ok := s.contacts[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", privmsg.ErrPrincipalNotFound, ref)
	}
	return &c, nil
}

// FromPrincipals adapts a PrincipalResolver whose principals implement
// privmsg.Addressable.
type FromPrincipals struct {
	principals privmsg.PrincipalResolver
}

var _ privmsg.ContactResolver = (*FromPrincipals)(nil)

// NewFromPrincipals wraps r.
func NewFromPrincipals(r privmsg.PrincipalResolver) *FromPrincipals {
	return &FromPrincipals{principals: r}
}

// Contact resolves ref and reads its display name and email address.
// Principals that are not Addressable yield ErrNoContact.
func (f *FromPrincipals) Contact(ctx context.Context, ref privmsg.PrincipalRef) (*privmsg.Contact, error) {
	p, err := f.principals.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	a, ok := p.(privmsg.Addressable)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not addressable", privmsg.ErrNoContact, ref)
	}
	return &privmsg.Contact{
		Ref:   ref,
		Name:  a.DisplayName(),
		Email: a.EmailAddress(),
	}, nil
}
