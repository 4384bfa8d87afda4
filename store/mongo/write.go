package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/privmsg/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MarkRead sets read_at once; the filter on read_at: null keeps the first value.
func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) error {
	return s.updateNullable(ctx, id, []string{"read_at"}, store.Timestamp(at))
}

// MarkDeleted sets each missing soft-delete marker of party.
func (s *Store) MarkDeleted(ctx context.Context, id string, party store.Party, at time.Time) error {
	fields, err := deletedFields(party)
	if err != nil {
		return err
	}
	return s.updateNullable(ctx, id, fields, store.Timestamp(at))
}

// ClearDeleted clears the soft-delete markers of party.
func (s *Store) ClearDeleted(ctx context.Context, id string, party store.Party) error {
	fields, err := deletedFields(party)
	if err != nil {
		return err
	}
	if err := s.checkConnected(); err != nil {
		return err
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	set := bson.M{}
	for _, f := range fields {
		set[f] = nil
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("clear deleted: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// updateNullable sets each field to at when it is still null. A pipeline
// update with $ifNull does this in one atomic round trip.
func (s *Store) updateNullable(ctx context.Context, id string, fields []string, at time.Time) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	set := bson.M{}
	for _, f := range fields {
		set[f] = bson.M{"$ifNull": bson.A{"$" + f, at}}
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.A{bson.M{"$set": set}})
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func deletedFields(party store.Party) ([]string, error) {
	var fields []string
	if party.Has(store.PartySender) {
		fields = append(fields, "sender_deleted_at")
	}
	if party.Has(store.PartyRecipient) {
		fields = append(fields, "recipient_deleted_at")
	}
	if len(fields) == 0 {
		return nil, store.ErrInvalidParty
	}
	return fields, nil
}
