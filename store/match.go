package store

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Matches evaluates filters against a message in process. Backends
// without a query engine (memory, pebble) use it to implement Find.
func Matches(m Message, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(m, f) {
			return false
		}
	}
	return true
}

func matchFilter(m Message, f Filter) bool {
	if f.Operator() == "or" {
		for _, group := range f.Groups() {
			if Matches(m, group) {
				return true
			}
		}
		return false
	}

	fieldValue, ok := fieldValue(m, f.Key())
	if !ok {
		return false
	}
	value := normalizeValue(f.Value())

	switch f.Operator() {
	case "eq", "":
		return compareValues(fieldValue, value) == 0 && fieldValue != nil
	case "ne":
		return fieldValue == nil || compareValues(fieldValue, value) != 0
	case "lt":
		return fieldValue != nil && compareValues(fieldValue, value) < 0
	case "lte":
		return fieldValue != nil && compareValues(fieldValue, value) <= 0
	case "gt":
		return fieldValue != nil && compareValues(fieldValue, value) > 0
	case "gte":
		return fieldValue != nil && compareValues(fieldValue, value) >= 0
	case "exists":
		exists, _ := value.(bool)
		isEmpty := fieldValue == nil || fieldValue == ""
		return exists != isEmpty
	case "in":
		return fieldValue != nil && valueInSet(fieldValue, value)
	case "nin":
		return fieldValue == nil || !valueInSet(fieldValue, value)
	default:
		return false
	}
}

// fieldValue extracts a comparable value for a storage key. Unset
// timestamps are reported as nil.
func fieldValue(m Message, key string) (any, bool) {
	switch key {
	case "id":
		return m.GetID(), true
	case "subject":
		return m.GetSubject(), true
	case "body":
		return m.GetBody(), true
	case "sender_type":
		return m.GetSender().Type, true
	case "sender_id":
		return m.GetSender().ID, true
	case "recipient_type":
		return m.GetRecipient().Type, true
	case "recipient_id":
		return m.GetRecipient().ID, true
	case "parent_id":
		return m.GetParentID(), true
	case "sent_at":
		return m.GetSentAt(), true
	case "read_at":
		return timeValue(m.GetReadAt()), true
	case "replied_at":
		return timeValue(m.GetRepliedAt()), true
	case "sender_deleted_at":
		return timeValue(m.GetSenderDeletedAt()), true
	case "recipient_deleted_at":
		return timeValue(m.GetRecipientDeletedAt()), true
	default:
		return nil, false
	}
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// normalizeValue widens integer kinds to int64 so ids compare regardless
// of how the caller typed them.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case *time.Time:
		if n == nil {
			return nil
		}
		return *n
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}

func valueInSet(fieldValue any, set any) bool {
	switch s := set.(type) {
	case []string:
		fv, ok := fieldValue.(string)
		if !ok {
			return false
		}
		return slices.Contains(s, fv)
	case []int64:
		fv, ok := fieldValue.(int64)
		if !ok {
			return false
		}
		return slices.Contains(s, fv)
	case []any:
		for _, v := range s {
			if compareValues(fieldValue, normalizeValue(v)) == 0 {
				return true
			}
		}
	}
	return false
}

// compareValues orders two values of the same kind. Mismatched kinds
// compare as unequal.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return -2
}

// compareKeys orders two messages by (sent_at, id) ascending.
func compareKeys(a, b Message) int {
	if c := a.GetSentAt().Compare(b.GetSentAt()); c != 0 {
		return c
	}
	return strings.Compare(a.GetID(), b.GetID())
}

// SortMessages orders messages by (sent_at, id) in the requested direction.
func SortMessages(msgs []Message, order SortOrder) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		if order == SortDesc {
			return compareKeys(b, a)
		}
		return compareKeys(a, b)
	})
}

// Paginate applies cursor or offset pagination to an already sorted slice.
//
// cursor is the message named by opts.StartAfter, loaded by id from the
// whole store. The page starts at the first message whose (sent_at, id)
// key lies past the cursor's in sort order, so the cursor itself may have
// left the listed folder. A nil cursor with StartAfter set means the id is
// unknown and yields an empty page.
func Paginate(all []Message, opts ListOptions, cursor Message) *MessageList {
	total := int64(len(all))

	start := 0
	if opts.StartAfter != "" {
		if cursor == nil {
			return &MessageList{Total: total}
		}
		start = slices.IndexFunc(all, func(m Message) bool {
			if opts.Descending() {
				return compareKeys(m, cursor) < 0
			}
			return compareKeys(m, cursor) > 0
		})
		if start < 0 {
			start = len(all)
		}
	} else if opts.Offset > 0 {
		start = min(opts.Offset, len(all))
	}

	end := len(all)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	page := make([]Message, end-start)
	copy(page, all[start:end])

	list := &MessageList{
		Messages: page,
		Total:    total,
		HasMore:  end < len(all),
	}
	if list.HasMore && len(page) > 0 {
		list.NextCursor = page[len(page)-1].GetID()
	}
	return list
}
