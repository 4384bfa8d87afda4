package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbaliyan/privmsg/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc messageDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return docToMessage(&doc), nil
}

// Find retrieves messages matching the filters ordered by (sent_at, _id).
func (s *Store) Find(ctx context.Context, filters []store.Filter, opts store.ListOptions) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter, err := buildFilter(filters)
	if err != nil {
		return nil, err
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	sortDir := 1
	comp := "$gt"
	if opts.Descending() {
		sortDir, comp = -1, "$lt"
	}

	query := filter
	if opts.StartAfter != "" {
		cursorOID, err := bson.ObjectIDFromHex(opts.StartAfter)
		if err != nil {
			return nil, store.ErrInvalidID
		}
		var cursorDoc messageDoc
		if err := s.collection.FindOne(ctx, bson.M{"_id": cursorOID}).Decode(&cursorDoc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return &store.MessageList{Total: total}, nil
			}
			return nil, fmt.Errorf("fetch cursor document: %w", err)
		}
		// (sent_at, _id) strictly after the cursor in sort direction.
		query = bson.M{"$and": bson.A{filter, bson.M{"$or": bson.A{
			bson.M{"sent_at": bson.M{comp: cursorDoc.SentAt}},
			bson.M{"sent_at": cursorDoc.SentAt, "_id": bson.M{comp: cursorOID}},
		}}}}
	}

	findOpts := mongoopts.Find().SetSort(bson.D{
		bson.E{Key: "sent_at", Value: sortDir},
		bson.E{Key: "_id", Value: sortDir},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit) + 1)
	}
	if opts.StartAfter == "" && opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	hasMore := opts.Limit > 0 && len(docs) > opts.Limit
	if hasMore {
		docs = docs[:opts.Limit]
	}

	messages := make([]store.Message, len(docs))
	for i := range docs {
		messages[i] = docToMessage(&docs[i])
	}

	list := &store.MessageList{Messages: messages, Total: total, HasMore: hasMore}
	if hasMore && len(messages) > 0 {
		list.NextCursor = messages[len(messages)-1].GetID()
	}
	return list, nil
}

// Count counts messages matching the filters.
func (s *Store) Count(ctx context.Context, filters []store.Filter) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter, err := buildFilter(filters)
	if err != nil {
		return 0, err
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// MailboxStats computes every folder count with one $group stage.
func (s *Store) MailboxStats(ctx context.Context, owner store.PrincipalRef) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	isRecipient := bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{"$recipient.type", owner.Type}},
		bson.M{"$eq": bson.A{"$recipient.id", owner.ID}},
	}}
	isSender := bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{"$sender.type", owner.Type}},
		bson.M{"$eq": bson.A{"$sender.id", owner.ID}},
	}}
	count := func(cond any) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
	}
	and := func(conds ...any) bson.M { return bson.M{"$and": bson.A(conds)} }

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"recipient.type": owner.Type, "recipient.id": owner.ID},
			bson.M{"sender.type": owner.Type, "sender.id": owner.ID},
		}}}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"inbox":  count(and(isRecipient, isNull("$recipient_deleted_at"))),
			"unread": count(and(isRecipient, isNull("$recipient_deleted_at"), isNull("$read_at"))),
			"outbox": count(and(isSender, isNull("$sender_deleted_at"))),
			"trash": count(bson.M{"$or": bson.A{
				and(isRecipient, bson.M{"$not": bson.A{isNull("$recipient_deleted_at")}}),
				and(isSender, bson.M{"$not": bson.A{isNull("$sender_deleted_at")}}),
			}}),
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mailbox stats: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Inbox  int64 `bson:"inbox"`
		Unread int64 `bson:"unread"`
		Outbox int64 `bson:"outbox"`
		Trash  int64 `bson:"trash"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode mailbox stats: %w", err)
	}

	stats := &store.MailboxStats{}
	if len(result) > 0 {
		stats.Inbox = result[0].Inbox
		stats.Unread = result[0].Unread
		stats.Outbox = result[0].Outbox
		stats.Trash = result[0].Trash
	}
	return stats, nil
}

// isNull is true for both null and missing fields.
func isNull(field string) bson.M {
	return bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{field, nil}}, nil}}
}

// mapKey translates shared filter keys to MongoDB field names.
func mapKey(key string) string {
	switch key {
	case "id":
		return "_id"
	case "sender_type":
		return "sender.type"
	case "sender_id":
		return "sender.id"
	case "recipient_type":
		return "recipient.type"
	case "recipient_id":
		return "recipient.id"
	default:
		return key
	}
}

// mapValue converts hex ids to ObjectIDs and widens integers.
func mapValue(key string, v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case *time.Time:
		if n == nil {
			return nil, nil
		}
		return *n, nil
	}
	if key != "id" {
		return v, nil
	}
	switch id := v.(type) {
	case string:
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return nil, store.ErrInvalidID
		}
		return oid, nil
	case []any:
		out := make(bson.A, len(id))
		for i, e := range id {
			c, err := mapValue(key, e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return v, nil
}

// buildFilter converts store filters to a MongoDB filter document.
// Each filter becomes its own clause so several filters on one key combine.
func buildFilter(filters []store.Filter) (bson.M, error) {
	if len(filters) == 0 {
		return bson.M{}, nil
	}

	clauses := make(bson.A, 0, len(filters))
	for _, f := range filters {
		clause, err := filterClause(f)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return bson.M{"$and": clauses}, nil
}

func filterClause(f store.Filter) (bson.M, error) {
	if f.Operator() == "or" {
		groups := f.Groups()
		alts := make(bson.A, 0, len(groups))
		for _, g := range groups {
			sub, err := buildFilter(g)
			if err != nil {
				return nil, err
			}
			alts = append(alts, sub)
		}
		if len(alts) == 0 {
			return bson.M{"_id": bson.M{"$exists": false}}, nil
		}
		return bson.M{"$or": alts}, nil
	}

	if _, ok := store.MessageFieldKey(f.Key()); !ok {
		return nil, fmt.Errorf("%w: unsupported field: %s", store.ErrFilterInvalid, f.Key())
	}
	key := mapKey(f.Key())
	value, err := mapValue(f.Key(), f.Value())
	if err != nil {
		return nil, err
	}

	switch f.Operator() {
	case "eq", "":
		return bson.M{key: value}, nil
	case "ne":
		return bson.M{key: bson.M{"$ne": value}}, nil
	case "gt":
		return bson.M{key: bson.M{"$gt": value}}, nil
	case "gte":
		return bson.M{key: bson.M{"$gte": value}}, nil
	case "lt":
		return bson.M{key: bson.M{"$lt": value}}, nil
	case "lte":
		return bson.M{key: bson.M{"$lte": value}}, nil
	case "in":
		return bson.M{key: bson.M{"$in": value}}, nil
	case "nin":
		return bson.M{key: bson.M{"$nin": value}}, nil
	case "exists":
		// Nullable fields are stored as explicit nulls, so existence is
		// a null test rather than $exists.
		if exists, _ := value.(bool); exists {
			return bson.M{key: bson.M{"$nin": bson.A{nil, ""}}}, nil
		}
		return bson.M{key: bson.M{"$in": bson.A{nil, ""}}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator: %s", store.ErrFilterInvalid, f.Operator())
	}
}
