// Package memory provides an in-memory Store implementation for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
	smsstore "github.com/xraph/smsrelay/store"
)

// compile-time interface check.
var _ smsstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
// Records are cloned on the way in and out so callers never share state.
type Store struct {
	mu sync.RWMutex

	messages      map[id.ID]*message.Message
	organisations map[id.ID]*org.Organisation
	users         map[id.ID]*org.User

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		messages:      make(map[id.ID]*message.Message),
		organisations: make(map[id.ID]*org.Organisation),
		users:         make(map[id.ID]*org.User),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return smsrelay.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// message.Store
// ──────────────────────────────────────────────────

// CreateMessage stores m at version 1.
func (s *Store) CreateMessage(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return smsrelay.ErrStoreClosed
	}
	if _, ok := s.messages[m.ID]; ok {
		return smsrelay.ErrAlreadyExists
	}

	m.Version = 1
	s.messages[m.ID] = m.Clone()
	return nil
}

// GetMessage returns a copy of the stored message.
func (s *Store) GetMessage(_ context.Context, msgID id.ID) (*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[msgID]
	if !ok {
		return nil, smsrelay.ErrMessageNotFound
	}
	return m.Clone(), nil
}

// UpdateMessage replaces the stored message when the versions match.
func (s *Store) UpdateMessage(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return smsrelay.ErrStoreClosed
	}

	cur, ok := s.messages[m.ID]
	if !ok {
		return smsrelay.ErrMessageNotFound
	}
	if cur.Version != m.Version {
		return smsrelay.ErrVersionConflict
	}

	m.Version++
	s.messages[m.ID] = m.Clone()
	return nil
}

// FindByAttemptIDs returns messages holding one of attemptIDs pending for donor.
func (s *Store) FindByAttemptIDs(_ context.Context, attemptIDs []id.ID, donor id.ID) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := id.NewSet()
	for _, a := range attemptIDs {
		wanted.Add(a)
	}

	return s.filter(func(a *attempt.Attempt) bool {
		return a.State == attempt.Pending && a.Donor == donor && wanted.Has(a.ID)
	}, 0), nil
}

// FindWithPendingAttempts returns messages with stale pending attempts, oldest first.
func (s *Store) FindWithPendingAttempts(_ context.Context, f message.PendingFilter) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(a *attempt.Attempt) bool {
		if a.State != attempt.Pending {
			return false
		}
		return a.CreatedAt.Before(f.CreatedBefore) || (f.IncludeUnassigned && a.Donor.IsNil())
	}, f.Limit), nil
}

// ListPendingForDonor returns messages holding a pending attempt for donor.
func (s *Store) ListPendingForDonor(_ context.Context, donor id.ID) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(a *attempt.Attempt) bool {
		return a.State == attempt.Pending && a.Donor == donor
	}, 0), nil
}

// filter returns clones of messages with at least one attempt matching fn,
// ordered by creation time. Callers must hold the lock.
func (s *Store) filter(fn func(*attempt.Attempt) bool, limit int) []*message.Message {
	var out []*message.Message
	for _, m := range s.messages {
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

	for i, m := range out {
		out[i] = m.Clone()
	}
	return out
}

// ──────────────────────────────────────────────────
// org.Store
// ──────────────────────────────────────────────────

// CreateUser stores a user.
func (s *Store) CreateUser(_ context.Context, u *org.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return smsrelay.ErrAlreadyExists
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(_ context.Context, userID id.ID) (*org.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, smsrelay.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// CreateOrganisation stores an organisation. Member users are referenced by
// ID and resolved on read.
func (s *Store) CreateOrganisation(_ context.Context, o *org.Organisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organisations[o.ID]; ok {
		return smsrelay.ErrAlreadyExists
	}
	s.organisations[o.ID] = cloneOrganisation(o)
	return nil
}

// GetOrganisation returns an organisation with every member's User resolved.
// Members whose user no longer exists are returned unresolved.
func (s *Store) GetOrganisation(_ context.Context, orgID id.ID) (*org.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.organisations[orgID]
	if !ok {
		return nil, smsrelay.ErrOrganisationNotFound
	}

	c := cloneOrganisation(o)
	for _, m := range c.Members {
		if u, ok := s.users[m.UserID]; ok {
			uc := *u
			m.User = &uc
		}
	}
	return c, nil
}

func cloneOrganisation(o *org.Organisation) *org.Organisation {
	c := *o
	c.Members = make([]*org.Member, len(o.Members))
	for i, m := range o.Members {
		mc := *m
		mc.User = nil
		c.Members[i] = &mc
	}
	return &c
}
