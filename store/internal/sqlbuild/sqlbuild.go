// Package sqlbuild renders store filters and list options as SQL shared
// by the sqlite and postgres backends. Queries use '?' placeholders;
// callers rebind them for their driver (sqlx.DB.Rebind).
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/rbaliyan/privmsg/store"
)

// Columns is the canonical SELECT column list. Row scanners must read
// fields in this order.
const Columns = `id, subject, body, sender_type, sender_id, recipient_type, recipient_id,
       parent_id, sent_at, read_at, replied_at, sender_deleted_at, recipient_deleted_at`

// ValueFunc converts a filter value for a storage key into a driver
// argument (for example time.Time to unix milliseconds).
type ValueFunc func(key string, v any) any

// Identity passes values through unchanged.
func Identity(_ string, v any) any { return v }

// Where renders filters as a boolean expression. An empty filter set
// yields "1=1".
func Where(filters []store.Filter, conv ValueFunc) (string, []any, error) {
	if conv == nil {
		conv = Identity
	}
	var conds []string
	var args []any
	for _, f := range filters {
		cond, a, err := condition(f, conv)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, a...)
	}
	if len(conds) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

func condition(f store.Filter, conv ValueFunc) (string, []any, error) {
	if f.Operator() == "or" {
		groups := f.Groups()
		if len(groups) == 0 {
			return "1=0", nil, nil
		}
		parts := make([]string, 0, len(groups))
		var args []any
		for _, g := range groups {
			w, a, err := Where(g, conv)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+w+")")
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	col, ok := store.MessageFieldKey(f.Key())
	if !ok {
		return "", nil, fmt.Errorf("%w: unsupported field: %s", store.ErrFilterInvalid, f.Key())
	}
	val := f.Value()

	switch f.Operator() {
	case "eq", "":
		return col + " = ?", []any{conv(col, val)}, nil
	case "ne":
		return fmt.Sprintf("(%s IS NULL OR %s != ?)", col, col), []any{conv(col, val)}, nil
	case "gt":
		return col + " > ?", []any{conv(col, val)}, nil
	case "gte":
		return col + " >= ?", []any{conv(col, val)}, nil
	case "lt":
		return col + " < ?", []any{conv(col, val)}, nil
	case "lte":
		return col + " <= ?", []any{conv(col, val)}, nil
	case "in", "nin":
		items := toSlice(val)
		if len(items) == 0 {
			if f.Operator() == "in" {
				return "1=0", nil, nil
			}
			return "1=1", nil, nil
		}
		args := make([]any, len(items))
		for i, it := range items {
			args[i] = conv(col, it)
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
		if f.Operator() == "in" {
			return fmt.Sprintf("%s IN (%s)", col, marks), args, nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, marks), args, nil
	case "exists":
		exists, _ := val.(bool)
		if store.IsTimeField(col) {
			if exists {
				return col + " IS NOT NULL", nil, nil
			}
			return col + " IS NULL", nil, nil
		}
		if exists {
			return fmt.Sprintf("(%s IS NOT NULL AND %s != '')", col, col), nil, nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s = '')", col, col), nil, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported operator: %s", store.ErrFilterInvalid, f.Operator())
	}
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []int64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case nil:
		return nil
	default:
		return []any{v}
	}
}

// Page renders the SELECT for one page of Find. The count query is
// built separately from the same where clause without the cursor.
func Page(table, where string, args []any, opts store.ListOptions) (string, []any) {
	dir, cmp := "ASC", ">"
	if opts.Descending() {
		dir, cmp = "DESC", "<"
	}

	if opts.StartAfter != "" {
		where += fmt.Sprintf(" AND (sent_at, id) %s (SELECT sent_at, id FROM %s WHERE id = ?)", cmp, table)
		args = append(args, opts.StartAfter)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY sent_at %s, id %s", Columns, table, where, dir, dir)
	switch {
	case opts.Limit > 0 && opts.StartAfter == "":
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit+1, max(opts.Offset, 0))
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit+1)
	case opts.Offset > 0 && opts.StartAfter == "":
		// LIMIT -1 is not portable; a large bound keeps OFFSET valid in both dialects.
		query += " LIMIT ? OFFSET ?"
		args = append(args, int64(1<<62), opts.Offset)
	}
	return query, args
}

// Trim cuts the look-ahead row fetched by Page and fills HasMore and NextCursor.
func Trim(msgs []store.Message, total int64, opts store.ListOptions) *store.MessageList {
	hasMore := opts.Limit > 0 && len(msgs) > opts.Limit
	if hasMore {
		msgs = msgs[:opts.Limit]
	}
	list := &store.MessageList{Messages: msgs, Total: total, HasMore: hasMore}
	if hasMore && len(msgs) > 0 {
		list.NextCursor = msgs[len(msgs)-1].GetID()
	}
	return list
}

// Stats renders a conditional aggregation computing every folder count
// for one owner in a single pass.
func Stats(table string) string {
	const (
		isRecipient = "(recipient_type = ? AND recipient_id = ?)"
		isSender    = "(sender_type = ? AND sender_id = ?)"
	)
	return fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN %[2]s AND recipient_deleted_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[2]s AND recipient_deleted_at IS NULL AND read_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[3]s AND sender_deleted_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN (%[2]s AND recipient_deleted_at IS NOT NULL)
				OR (%[3]s AND sender_deleted_at IS NOT NULL) THEN 1 ELSE 0 END), 0)
		FROM %[1]s
		WHERE %[2]s OR %[3]s
	`, table, isRecipient, isSender)
}

// StatsArgs returns the arguments for Stats in placeholder order.
func StatsArgs(owner store.PrincipalRef) []any {
	r := []any{owner.Type, owner.ID}
	s := []any{owner.Type, owner.ID}
	var args []any
	// inbox, unread, outbox, trash(recipient, sender), where(recipient, sender)
	for _, part := range [][]any{r, r, s, r, s, r, s} {
		args = append(args, part...)
	}
	return args
}
