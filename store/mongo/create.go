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

// CreateMessage inserts the message and, for a reply, stamps the parent's
// replied_at in the same transaction. Standalone servers without
// transaction support fall back to a stamp-then-insert sequence that
// restores the parent's previous replied_at if the insert fails.
func (s *Store) CreateMessage(ctx context.Context, data store.MessageData) (store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	var parentOID bson.ObjectID
	if data.ParentID != "" {
		oid, err := bson.ObjectIDFromHex(data.ParentID)
		if err != nil {
			return nil, store.ErrParentNotFound
		}
		parentOID = oid
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	doc := &messageDoc{
		ID:        bson.NewObjectID(),
		Subject:   data.Subject,
		Body:      data.Body,
		Sender:    data.Sender,
		Recipient: data.Recipient,
		ParentID:  data.ParentID,
		SentAt:    store.Timestamp(data.SentAt),
	}

	if data.ParentID == "" {
		if _, err := s.collection.InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		return docToMessage(doc), nil
	}

	if !s.opts.transactions {
		return s.createReplyFallback(ctx, doc, parentOID)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return s.createReplyFallback(ctx, doc, parentOID)
	}
	defer session.EndSession(ctx)

	_, txErr := session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		res, err := s.collection.UpdateOne(sessCtx,
			bson.M{"_id": parentOID},
			bson.M{"$set": bson.M{"replied_at": doc.SentAt}})
		if err != nil {
			return nil, fmt.Errorf("update parent: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, store.ErrParentNotFound
		}
		if _, err := s.collection.InsertOne(sessCtx, doc); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		return nil, nil
	})
	if txErr != nil {
		if isTransactionNotSupported(txErr) {
			return s.createReplyFallback(ctx, doc, parentOID)
		}
		return nil, txErr
	}

	return docToMessage(doc), nil
}

// createReplyFallback stamps the parent, inserts the reply, and undoes the
// stamp when the insert fails.
func (s *Store) createReplyFallback(ctx context.Context, doc *messageDoc, parentOID bson.ObjectID) (store.Message, error) {
	var before messageDoc
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": parentOID},
		bson.M{"$set": bson.M{"replied_at": doc.SentAt}},
		mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrParentNotFound
		}
		return nil, fmt.Errorf("update parent: %w", err)
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		s.restoreRepliedAt(parentOID, doc.SentAt, before.RepliedAt)
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return docToMessage(doc), nil
}

// restoreRepliedAt reverts the parent stamp unless a concurrent reply has
// already overwritten it.
func (s *Store) restoreRepliedAt(parentOID bson.ObjectID, stamped time.Time, previous *time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.timeout)
	defer cancel()

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": parentOID, "replied_at": stamped},
		bson.M{"$set": bson.M{"replied_at": previous}})
	if err != nil {
		s.logger.Error("failed to restore parent replied_at", "parent_id", parentOID.Hex(), "error", err)
	}
}

// isTransactionNotSupported checks if the error indicates transactions aren't supported.
func isTransactionNotSupported(err error) bool {
	if err == nil {
		return false
	}
	// 263 (OperationNotSupportedInTransaction) and 20 (IllegalOperation)
	// are returned by standalone servers.
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 263 || cmdErr.Code == 20
	}
	return false
}
