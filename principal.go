package privmsg

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rbaliyan/privmsg/store"
)

// PrincipalRef is the stored (type, id) reference to a sender or recipient.
type PrincipalRef = store.PrincipalRef

// Principal is any entity that can send or receive messages. Users,
// teams and service accounts all qualify; the type tag keeps ids from
// different tables apart.
type Principal interface {
	PrincipalType() string
	PrincipalID() int64
}

// Ref builds a PrincipalRef.
func Ref(typ string, id int64) PrincipalRef {
	return store.Ref(typ, id)
}

// RefOf returns the stored reference for p.
func RefOf(p Principal) PrincipalRef {
	if p == nil {
		return PrincipalRef{}
	}
	if r, ok := p.(PrincipalRef); ok {
		return r
	}
	return store.Ref(p.PrincipalType(), p.PrincipalID())
}

// ParsePrincipalRef parses "type:id" (for example "user:42").
func ParsePrincipalRef(s string) (PrincipalRef, error) {
	ref, err := store.ParseRef(s)
	if err != nil {
		return PrincipalRef{}, fmt.Errorf("privmsg: %w", err)
	}
	return ref, nil
}

// Principal resolution errors.
var (
	// ErrUnknownPrincipalType is returned when no loader is registered for a type tag.
	ErrUnknownPrincipalType = errors.New("privmsg: unknown principal type")

	// ErrPrincipalNotFound is returned when a loader has no entity for an id.
	ErrPrincipalNotFound = errors.New("privmsg: principal not found")

	// ErrNoContact is returned when a principal has no usable contact address.
	ErrNoContact = errors.New("privmsg: no contact address")
)

// PrincipalResolver turns a stored reference into a live principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, ref PrincipalRef) (Principal, error)
}

// PrincipalLoader loads principals of a single type.
// It returns ErrPrincipalNotFound for unknown ids.
type PrincipalLoader interface {
	Load(ctx context.Context, id int64) (Principal, error)
}

// LoaderFunc adapts a function to PrincipalLoader.
type LoaderFunc func(ctx context.Context, id int64) (Principal, error)

func (f LoaderFunc) Load(ctx context.Context, id int64) (Principal, error) {
	return f(ctx, id)
}

// Registry resolves references by dispatching on the type tag.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]PrincipalLoader
}

var _ PrincipalResolver = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]PrincipalLoader)}
}

// Register adds the loader for a type tag. Each tag can be registered once.
func (r *Registry) Register(typ string, loader PrincipalLoader) error {
	if typ == "" || loader == nil {
		return fmt.Errorf("privmsg: register principal type %q: type and loader are required", typ)
	}
	if !store.Ref(typ, 1).Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidPrincipal, typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.loaders[typ]; exists {
		return fmt.Errorf("privmsg: principal type %q already registered", typ)
	}
	r.loaders[typ] = loader
	return nil
}

// Types returns the registered type tags.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.loaders))
	for t := range r.loaders {
		types = append(types, t)
	}
	return types
}

// Resolve loads the principal behind ref.
func (r *Registry) Resolve(ctx context.Context, ref PrincipalRef) (Principal, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrincipal, ref)
	}

	r.mu.RLock()
	loader, ok := r.loaders[ref.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPrincipalType, ref.Type)
	}

	p, err := loader.Load(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, ref)
	}
	return p, nil
}

// Contact is the addressable view of a principal used by notifiers.
type Contact struct {
	Ref   PrincipalRef
	Name  string
	Email string
}

// ContactResolver looks up contact details for a principal.
// It returns ErrNoContact (or ErrPrincipalNotFound) when none exist.
type ContactResolver interface {
	Contact(ctx context.Context, ref PrincipalRef) (*Contact, error)
}

// Addressable is implemented by principals that carry contact details.
type Addressable interface {
	Principal
	DisplayName() string
	EmailAddress() string
}
