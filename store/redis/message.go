package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
)

// CreateMessage stores m at version 1 together with its indexes.
func (s *Store) CreateMessage(ctx context.Context, m *message.Message) error {
	key := entityKey(prefixMessage, m.ID.String())

	m.Version = 1
	if err := s.createEntity(ctx, key, toMessageModel(m), "message"); err != nil {
		return err
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		writeIndexes(ctx, pipe, nil, m)
		return nil
	})
	if err != nil {
		return fmt.Errorf("smsrelay/redis: index message: %w", err)
	}
	return nil
}

// GetMessage returns a message by ID.
func (s *Store) GetMessage(ctx context.Context, msgID id.ID) (*message.Message, error) {
	m, err := s.getMessage(ctx, s.rdb, msgID.String())
	if err != nil {
		if isRedisNil(err) {
			return nil, smsrelay.ErrMessageNotFound
		}
		return nil, fmt.Errorf("smsrelay/redis: get message: %w", err)
	}
	return m, nil
}

// UpdateMessage replaces the stored message when its version still matches.
// The read-compare-write runs under WATCH, so a concurrent writer aborts the
// transaction.
func (s *Store) UpdateMessage(ctx context.Context, m *message.Message) error {
	key := entityKey(prefixMessage, m.ID.String())

	txf := func(tx *goredis.Tx) error {
		cur, err := s.getMessage(ctx, tx, m.ID.String())
		if err != nil {
			if isRedisNil(err) {
				return smsrelay.ErrMessageNotFound
			}
			return err
		}
		if cur.Version != m.Version {
			return smsrelay.ErrVersionConflict
		}

		next := *m
		next.Version = m.Version + 1

		raw, err := json.Marshal(toMessageModel(&next))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			writeIndexes(ctx, pipe, cur, &next)
			return nil
		})
		if err != nil {
			return err
		}

		m.Version = next.Version
		return nil
	}

	err := s.rdb.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return smsrelay.ErrVersionConflict
	case errors.Is(err, smsrelay.ErrVersionConflict), errors.Is(err, smsrelay.ErrMessageNotFound):
		return err
	default:
		return fmt.Errorf("smsrelay/redis: update message: %w", err)
	}
}

// FindByAttemptIDs resolves attempt IDs through the attempt index and keeps
// messages holding one of them pending for donor.
func (s *Store) FindByAttemptIDs(ctx context.Context, attemptIDs []id.ID, donor id.ID) ([]*message.Message, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(attemptIDs))
	wanted := id.NewSet()
	for i, a := range attemptIDs {
		keys[i] = entityKey(prefixAttempt, a.String())
		wanted.Add(a)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("smsrelay/redis: resolve attempts: %w", err)
	}

	msgIDs := make([]string, 0, len(vals))
	for _, v := range vals {
		if str, ok := v.(string); ok {
			msgIDs = append(msgIDs, str)
		}
	}

	return s.loadMatching(ctx, msgIDs, func(a *attempt.Attempt) bool {
		return a.State == attempt.Pending && a.Donor == donor && wanted.Has(a.ID)
	}, 0)
}

// FindWithPendingAttempts reads candidates from the pending index and the
// unassigned set, then filters them exactly.
func (s *Store) FindWithPendingAttempts(ctx context.Context, f message.PendingFilter) ([]*message.Message, error) {
	upper := strconv.FormatFloat(scoreFromTime(f.CreatedBefore), 'f', -1, 64)

	msgIDs, err := s.rdb.ZRangeByScore(ctx, zPending, &goredis.ZRangeBy{
		Min: "-inf",
		Max: upper,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("smsrelay/redis: range pending: %w", err)
	}

	if f.IncludeUnassigned {
		unassigned, err := s.rdb.SMembers(ctx, sUnassigned).Result()
		if err != nil {
			return nil, fmt.Errorf("smsrelay/redis: list unassigned: %w", err)
		}
		msgIDs = append(msgIDs, unassigned...)
	}

	return s.loadMatching(ctx, msgIDs, func(a *attempt.Attempt) bool {
		if a.State != attempt.Pending {
			return false
		}
		return a.CreatedAt.Before(f.CreatedBefore) || (f.IncludeUnassigned && a.Donor.IsNil())
	}, f.Limit)
}

// ListPendingForDonor returns messages holding a pending attempt for donor.
func (s *Store) ListPendingForDonor(ctx context.Context, donor id.ID) ([]*message.Message, error) {
	msgIDs, err := s.rdb.SMembers(ctx, donorSetKey(donor.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("smsrelay/redis: list donor pending: %w", err)
	}

	return s.loadMatching(ctx, msgIDs, func(a *attempt.Attempt) bool {
		return a.State == attempt.Pending && a.Donor == donor
	}, 0)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (s *Store) getMessage(ctx context.Context, c getter, msgID string) (*message.Message, error) {
	var mm messageModel
	if err := getEntity(ctx, c, entityKey(prefixMessage, msgID), &mm); err != nil {
		return nil, err
	}
	return fromMessageModel(&mm)
}

// loadMatching loads the distinct messages in msgIDs, keeps those with an
// attempt matching fn and orders them by creation time. Index entries
// pointing at missing messages are skipped.
func (s *Store) loadMatching(ctx context.Context, msgIDs []string, fn func(*attempt.Attempt) bool, limit int) ([]*message.Message, error) {
	seen := make(map[string]struct{}, len(msgIDs))
	var out []*message.Message

	for _, msgID := range msgIDs {
		if _, dup := seen[msgID]; dup {
			continue
		}
		seen[msgID] = struct{}{}

		m, err := s.getMessage(ctx, s.rdb, msgID)
		if err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("smsrelay/redis: load message %s: %w", msgID, err)
		}

		for _, a := range m.Attempts {
			if fn(a) {
				out = append(out, m)
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// writeIndexes queues index updates moving from old (nil on create) to m.
func writeIndexes(ctx context.Context, pipe goredis.Pipeliner, old, m *message.Message) {
	msgID := m.ID.String()

	for _, a := range m.Attempts {
		if old == nil || old.Attempt(a.ID) == nil {
			pipe.Set(ctx, entityKey(prefixAttempt, a.ID.String()), msgID, 0)
		}
	}

	newDonors := pendingDonors(m)
	if old != nil {
		for d := range pendingDonors(old) {
			if _, ok := newDonors[d]; !ok {
				pipe.SRem(ctx, donorSetKey(d), msgID)
			}
		}
	}
	for d := range newDonors {
		pipe.SAdd(ctx, donorSetKey(d), msgID)
	}

	oldest, unassigned, found := pendingSummary(m)
	if found {
		pipe.ZAdd(ctx, zPending, goredis.Z{Score: scoreFromTime(oldest), Member: msgID})
	} else {
		pipe.ZRem(ctx, zPending, msgID)
	}
	if unassigned {
		pipe.SAdd(ctx, sUnassigned, msgID)
	} else {
		pipe.SRem(ctx, sUnassigned, msgID)
	}
}

// pendingDonors returns the donors holding a pending attempt on m.
func pendingDonors(m *message.Message) map[string]struct{} {
	out := make(map[string]struct{})
	for _, a := range m.Attempts {
		if a.State == attempt.Pending && !a.Donor.IsNil() {
			out[a.Donor.String()] = struct{}{}
		}
	}
	return out
}

// pendingSummary reports the oldest pending attempt's creation time and
// whether any pending attempt lacks a donor.
func pendingSummary(m *message.Message) (oldest time.Time, unassigned, found bool) {
	for _, a := range m.Attempts {
		if a.State != attempt.Pending {
			continue
		}
		if a.Donor.IsNil() {
			unassigned = true
		}
		if !found || a.CreatedAt.Before(oldest) {
			oldest = a.CreatedAt
		}
		found = true
	}
	return oldest, unassigned, found
}
