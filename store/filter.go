package store

import (
	"fmt"
)

// SortOrder represents the sort direction. The zero value sorts ascending,
// which is the listing order for every folder.
type SortOrder int

const (
	// SortAsc sorts oldest first.
	SortAsc SortOrder = 1
	// SortDesc sorts newest first.
	SortDesc SortOrder = -1
)

// ListOptions configures message listing. Messages are always ordered by
// (sent_at, id); SortOrder only chooses the direction.
type ListOptions struct {
	Limit      int // <= 0 means no limit
	Offset     int
	SortOrder  SortOrder
	StartAfter string // cursor-based pagination, takes precedence over Offset
}

// Descending reports whether the listing runs newest first.
func (o ListOptions) Descending() bool { return o.SortOrder == SortDesc }

// Filter represents a query filter with a field key, comparison operator, and value.
// A disjunction is a Filter with operator "or" whose value is [][]Filter:
// each inner slice is ANDed, and the groups are ORed.
type Filter struct {
	key      string
	value    any
	operator string
}

// Key returns the storage field key.
func (f Filter) Key() string { return f.key }

// Value returns the filter value.
func (f Filter) Value() any { return f.value }

// Operator returns the comparison operator (eq, ne, gt, gte, lt, lte, in, nin, exists, or).
func (f Filter) Operator() string { return f.operator }

// Groups returns the alternatives of an "or" filter.
func (f Filter) Groups() [][]Filter {
	groups, _ := f.value.([][]Filter)
	return groups
}

// FilterBuilder builds filters for a specific message field.
//
//	filter, err := store.MessageFilter("SentAt").GreaterThan(cutoff)
type FilterBuilder struct {
	key string
	err error
}

var validOperators = map[string]bool{
	"eq":     true,
	"ne":     true,
	"gt":     true,
	"gte":    true,
	"lt":     true,
	"lte":    true,
	"in":     true,
	"nin":    true,
	"exists": true,
}

// NewFilter creates a filter with the given key, operator, and value.
// Returns ErrFilterInvalid if the key or operator is invalid.
func NewFilter(key, operator string, value any) (Filter, error) {
	storageKey, ok := MessageFieldKey(key)
	if !ok {
		return Filter{}, fmt.Errorf("%w: unsupported field: %s", ErrFilterInvalid, key)
	}
	if !validOperators[operator] {
		return Filter{}, fmt.Errorf("%w: unsupported operator: %s", ErrFilterInvalid, operator)
	}
	return Filter{key: storageKey, value: value, operator: operator}, nil
}

// Or combines filter groups into a single disjunction.
func Or(groups ...[]Filter) Filter {
	return Filter{operator: "or", value: groups}
}

// FilterError represents an error in filter building.
type FilterError struct {
	Key string
	Err error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Key, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

func (b *FilterBuilder) build(op string, v any) (Filter, error) {
	if b.err != nil {
		return Filter{}, &FilterError{Key: b.key, Err: b.err}
	}
	return Filter{key: b.key, value: v, operator: op}, nil
}

func (b *FilterBuilder) Equal(v any) (Filter, error)            { return b.build("eq", v) }
func (b *FilterBuilder) NotEqual(v any) (Filter, error)         { return b.build("ne", v) }
func (b *FilterBuilder) GreaterThan(v any) (Filter, error)      { return b.build("gt", v) }
func (b *FilterBuilder) GreaterThanEqual(v any) (Filter, error) { return b.build("gte", v) }
func (b *FilterBuilder) LessThan(v any) (Filter, error)         { return b.build("lt", v) }
func (b *FilterBuilder) LessThanEqual(v any) (Filter, error)    { return b.build("lte", v) }
func (b *FilterBuilder) In(v ...any) (Filter, error)            { return b.build("in", v) }
func (b *FilterBuilder) NotIn(v ...any) (Filter, error)         { return b.build("nin", v) }

// Exists matches set (true) or unset (false) fields. On timestamp
// columns it is the IS NOT NULL / IS NULL test.
func (b *FilterBuilder) Exists(v bool) (Filter, error) { return b.build("exists", v) }

// MessageFilter returns a filter builder for message fields.
func MessageFilter(field string) *FilterBuilder {
	key, ok := MessageFieldKey(field)
	if !ok {
		return &FilterBuilder{key: field, err: fmt.Errorf("%w: unsupported field: %s", ErrFilterInvalid, field)}
	}
	return &FilterBuilder{key: key}
}

// MessageFieldKey maps field names to storage keys.
func MessageFieldKey(field string) (string, bool) {
	switch field {
	case "ID", "id":
		return "id", true
	case "Subject", "subject":
		return "subject", true
	case "Body", "body":
		return "body", true
	case "SenderType", "sender_type":
		return "sender_type", true
	case "SenderID", "sender_id":
		return "sender_id", true
	case "RecipientType", "recipient_type":
		return "recipient_type", true
	case "RecipientID", "recipient_id":
		return "recipient_id", true
	case "ParentID", "parent_id":
		return "parent_id", true
	case "SentAt", "sent_at":
		return "sent_at", true
	case "ReadAt", "read_at":
		return "read_at", true
	case "RepliedAt", "replied_at":
		return "replied_at", true
	case "SenderDeletedAt", "sender_deleted_at":
		return "sender_deleted_at", true
	case "RecipientDeletedAt", "recipient_deleted_at":
		return "recipient_deleted_at", true
	default:
		return "", false
	}
}

// IsTimeField reports whether key is a timestamp column.
func IsTimeField(key string) bool {
	switch key {
	case "sent_at", "read_at", "replied_at", "sender_deleted_at", "recipient_deleted_at":
		return true
	}
	return false
}

// Convenience filter functions

// SenderIs returns the filters matching messages sent by ref.
func SenderIs(ref PrincipalRef) []Filter {
	t, _ := MessageFilter("SenderType").Equal(ref.Type)
	id, _ := MessageFilter("SenderID").Equal(ref.ID)
	return []Filter{t, id}
}

// RecipientIs returns the filters matching messages addressed to ref.
func RecipientIs(ref PrincipalRef) []Filter {
	t, _ := MessageFilter("RecipientType").Equal(ref.Type)
	id, _ := MessageFilter("RecipientID").Equal(ref.ID)
	return []Filter{t, id}
}

// ParentIs returns a filter for replies to a specific message.
func ParentIs(parentID string) Filter {
	f, _ := MessageFilter("ParentID").Equal(parentID)
	return f
}

// Unread returns a filter for messages the recipient has not read.
func Unread() Filter {
	f, _ := MessageFilter("ReadAt").Exists(false)
	return f
}

// SenderDeleted returns a filter on the sender's soft-delete marker.
func SenderDeleted(deleted bool) Filter {
	f, _ := MessageFilter("SenderDeletedAt").Exists(deleted)
	return f
}

// RecipientDeleted returns a filter on the recipient's soft-delete marker.
func RecipientDeleted(deleted bool) Filter {
	f, _ := MessageFilter("RecipientDeletedAt").Exists(deleted)
	return f
}

// FolderFilters returns the filters defining a folder view for owner.
//
//	inbox:  recipient = owner AND recipient_deleted_at IS NULL
//	outbox: sender = owner AND sender_deleted_at IS NULL
//	trash:  (recipient = owner AND recipient_deleted_at IS NOT NULL)
//	        OR (sender = owner AND sender_deleted_at IS NOT NULL)
//
// Trash is a single disjunction so a message deleted by both sides of a
// self-addressed conversation is returned once.
func FolderFilters(owner PrincipalRef, folder Folder) ([]Filter, error) {
	switch folder {
	case FolderInbox:
		return append(RecipientIs(owner), RecipientDeleted(false)), nil
	case FolderOutbox:
		return append(SenderIs(owner), SenderDeleted(false)), nil
	case FolderTrash:
		return []Filter{Or(
			append(RecipientIs(owner), RecipientDeleted(true)),
			append(SenderIs(owner), SenderDeleted(true)),
		)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown folder: %s", ErrFilterInvalid, folder)
	}
}
