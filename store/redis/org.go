package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/org"
)

// CreateUser stores a user.
func (s *Store) CreateUser(ctx context.Context, u *org.User) error {
	return s.createEntity(ctx, entityKey(prefixUser, u.ID.String()), u, "user")
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, userID id.ID) (*org.User, error) {
	var u org.User
	if err := getEntity(ctx, s.rdb, entityKey(prefixUser, userID.String()), &u); err != nil {
		if isRedisNil(err) {
			return nil, smsrelay.ErrUserNotFound
		}
		return nil, fmt.Errorf("smsrelay/redis: get user: %w", err)
	}
	return &u, nil
}

// CreateOrganisation stores an organisation with its members.
func (s *Store) CreateOrganisation(ctx context.Context, o *org.Organisation) error {
	return s.createEntity(ctx, entityKey(prefixOrganisation, o.ID.String()), toOrganisationModel(o), "organisation")
}

// GetOrganisation returns an organisation with every member's User resolved
// by a single MGET. Members whose user is missing stay unresolved.
func (s *Store) GetOrganisation(ctx context.Context, orgID id.ID) (*org.Organisation, error) {
	var om organisationModel
	if err := getEntity(ctx, s.rdb, entityKey(prefixOrganisation, orgID.String()), &om); err != nil {
		if isRedisNil(err) {
			return nil, smsrelay.ErrOrganisationNotFound
		}
		return nil, fmt.Errorf("smsrelay/redis: get organisation: %w", err)
	}

	o, err := fromOrganisationModel(&om)
	if err != nil {
		return nil, err
	}
	if len(o.Members) == 0 {
		return o, nil
	}

	keys := make([]string, len(o.Members))
	for i, m := range o.Members {
		keys[i] = entityKey(prefixUser, m.UserID.String())
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("smsrelay/redis: resolve members: %w", err)
	}

	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var u org.User
		if err := json.Unmarshal([]byte(str), &u); err != nil {
			return nil, fmt.Errorf("smsrelay/redis: decode member user: %w", err)
		}
		o.Members[i].User = &u
	}
	return o, nil
}

// createEntity stores value at key unless the key already exists.
func (s *Store) createEntity(ctx context.Context, key string, value any, kind string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("smsrelay/redis: marshal %s: %w", kind, err)
	}
	ok, err := s.rdb.SetNX(ctx, key, raw, 0).Result()
	if err != nil {
		return fmt.Errorf("smsrelay/redis: create %s: %w", kind, err)
	}
	if !ok {
		return smsrelay.ErrAlreadyExists
	}
	return nil
}
