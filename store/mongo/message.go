package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
)

// CreateMessage inserts m at version 1.
func (s *Store) CreateMessage(ctx context.Context, m *message.Message) error {
	mm := toMessageModel(m)
	mm.Version = 1

	_, err := s.db.Collection(colMessages).InsertOne(ctx, mm)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return smsrelay.ErrAlreadyExists
		}
		return fmt.Errorf("smsrelay/mongo: create message: %w", err)
	}

	m.Version = 1
	return nil
}

// GetMessage returns a message by ID.
func (s *Store) GetMessage(ctx context.Context, msgID id.ID) (*message.Message, error) {
	var mm messageModel

	err := s.db.Collection(colMessages).FindOne(ctx, bson.M{"_id": msgID.String()}).Decode(&mm)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, smsrelay.ErrMessageNotFound
		}
		return nil, fmt.Errorf("smsrelay/mongo: get message: %w", err)
	}

	return fromMessageModel(&mm)
}

// UpdateMessage replaces the document if its version still matches m.Version.
// UpdatedAt is stored as the caller set it.
func (s *Store) UpdateMessage(ctx context.Context, m *message.Message) error {
	col := s.db.Collection(colMessages)

	mm := toMessageModel(m)
	mm.Version = m.Version + 1

	res, err := col.ReplaceOne(ctx, bson.M{"_id": mm.ID, "version": m.Version}, mm)
	if err != nil {
		return fmt.Errorf("smsrelay/mongo: update message: %w", err)
	}

	if res.MatchedCount == 0 {
		n, err := col.CountDocuments(ctx, bson.M{"_id": mm.ID})
		if err != nil {
			return fmt.Errorf("smsrelay/mongo: update message: %w", err)
		}
		if n == 0 {
			return smsrelay.ErrMessageNotFound
		}
		return smsrelay.ErrVersionConflict
	}

	m.Version = mm.Version
	return nil
}

// FindByAttemptIDs returns messages holding one of attemptIDs pending for donor.
func (s *Store) FindByAttemptIDs(ctx context.Context, attemptIDs []id.ID, donor id.ID) ([]*message.Message, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}
	return s.findMessages(ctx, attemptIDsFilter(attemptIDs, donor), options.Find())
}

// FindWithPendingAttempts returns messages with stale pending attempts, oldest first.
func (s *Store) FindWithPendingAttempts(ctx context.Context, f message.PendingFilter) ([]*message.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return s.findMessages(ctx, pendingFilter(f), opts)
}

// ListPendingForDonor returns messages holding a pending attempt for donor.
func (s *Store) ListPendingForDonor(ctx context.Context, donor id.ID) ([]*message.Message, error) {
	filter := bson.M{"attempts": bson.M{"$elemMatch": bson.M{
		"donor": donor.String(),
		"state": string(attempt.Pending),
	}}}
	return s.findMessages(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *Store) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*message.Message, error) {
	cursor, err := s.db.Collection(colMessages).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("smsrelay/mongo: find messages: %w", err)
	}

	var models []messageModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("smsrelay/mongo: decode messages: %w", err)
	}

	out := make([]*message.Message, 0, len(models))
	for i := range models {
		m, err := fromMessageModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func attemptIDsFilter(attemptIDs []id.ID, donor id.ID) bson.M {
	ids := make(bson.A, len(attemptIDs))
	for i, a := range attemptIDs {
		ids[i] = a.String()
	}
	return bson.M{"attempts": bson.M{"$elemMatch": bson.M{
		"_id":   bson.M{"$in": ids},
		"donor": donor.String(),
		"state": string(attempt.Pending),
	}}}
}

func pendingFilter(f message.PendingFilter) bson.M {
	stale := bson.M{"attempts": bson.M{"$elemMatch": bson.M{
		"state":      string(attempt.Pending),
		"created_at": bson.M{"$lt": f.CreatedBefore.UTC().Truncate(time.Millisecond)},
	}}}
	if !f.IncludeUnassigned {
		return stale
	}

	unassigned := bson.M{"attempts": bson.M{"$elemMatch": bson.M{
		"state": string(attempt.Pending),
		"donor": "",
	}}}
	return bson.M{"$or": bson.A{stale, unassigned}}
}
