// Package redis implements store.Store on Redis.
//
// Entities are JSON values. Messages keep their attempts embedded and carry a
// version; updates run under WATCH so a concurrent writer aborts the
// transaction and surfaces as ErrVersionConflict. Secondary indexes map
// attempts to messages and track pending work per donor and by age.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	smsstore "github.com/xraph/smsrelay/store"
)

// compile-time interface check
var _ smsstore.Store = (*Store)(nil)

// Store implements store.Store using go-redis.
type Store struct {
	rdb goredis.UniversalClient
}

// New creates a new Redis store on rdb.
func New(rdb goredis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.rdb }

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("smsrelay/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// getter is satisfied by clients and by transactions under WATCH.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// getEntity retrieves and decodes a JSON entity.
func getEntity(ctx context.Context, c getter, key string, dest any) error {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
