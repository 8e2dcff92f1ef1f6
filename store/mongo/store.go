// Package mongo implements store.Store on MongoDB.
//
// A message is one document with its attempts embedded, so every
// read-modify-write of a message is a single versioned ReplaceOne.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/smsrelay/store"
)

// Collection name constants.
const (
	colMessages      = "smsrelay_messages"
	colOrganisations = "smsrelay_organisations"
	colUsers         = "smsrelay_users"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using the MongoDB driver.
type Store struct {
	db *mongo.Database
}

// New creates a new MongoDB store on db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Connect opens a client for uri and returns a store on database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("smsrelay/mongo: connect: %w", err)
	}
	s := New(client.Database(database))
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all smsrelay collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}

		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("smsrelay/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("smsrelay/mongo: ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.db.Client().Disconnect(ctx)
}

// migrationIndexes returns the index definitions for all smsrelay collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colMessages: {
			{Keys: bson.D{{Key: "attempts._id", Value: 1}}},
			{Keys: bson.D{{Key: "attempts.donor", Value: 1}, {Key: "attempts.state", Value: 1}}},
			{Keys: bson.D{{Key: "attempts.state", Value: 1}, {Key: "attempts.created_at", Value: 1}}},
			{Keys: bson.D{{Key: "organisation", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colOrganisations: {
			{Keys: bson.D{{Key: "members.user", Value: 1}}},
		},
		colUsers: {
			{
				Keys:    bson.D{{Key: "phone_number", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	}
}
