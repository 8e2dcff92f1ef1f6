package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/org"
)

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u *org.User) error {
	_, err := s.db.Collection(colUsers).InsertOne(ctx, toUserModel(u))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return smsrelay.ErrAlreadyExists
		}
		return fmt.Errorf("smsrelay/mongo: create user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, userID id.ID) (*org.User, error) {
	var um userModel

	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&um)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, smsrelay.ErrUserNotFound
		}
		return nil, fmt.Errorf("smsrelay/mongo: get user: %w", err)
	}

	return fromUserModel(&um)
}

// CreateOrganisation inserts an organisation with its members.
func (s *Store) CreateOrganisation(ctx context.Context, o *org.Organisation) error {
	_, err := s.db.Collection(colOrganisations).InsertOne(ctx, toOrganisationModel(o))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return smsrelay.ErrAlreadyExists
		}
		return fmt.Errorf("smsrelay/mongo: create organisation: %w", err)
	}
	return nil
}

// GetOrganisation returns an organisation with every member's User resolved
// by a single $in lookup.
func (s *Store) GetOrganisation(ctx context.Context, orgID id.ID) (*org.Organisation, error) {
	var om organisationModel

	err := s.db.Collection(colOrganisations).FindOne(ctx, bson.M{"_id": orgID.String()}).Decode(&om)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, smsrelay.ErrOrganisationNotFound
		}
		return nil, fmt.Errorf("smsrelay/mongo: get organisation: %w", err)
	}

	o, err := fromOrganisationModel(&om)
	if err != nil {
		return nil, err
	}
	if len(om.Members) == 0 {
		return o, nil
	}

	userIDs := make(bson.A, len(om.Members))
	for i, m := range om.Members {
		userIDs[i] = m.User
	}

	cursor, err := s.db.Collection(colUsers).Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("smsrelay/mongo: resolve members: %w", err)
	}
	var users []userModel
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("smsrelay/mongo: decode members: %w", err)
	}

	byID := make(map[string]*org.User, len(users))
	for i := range users {
		u, err := fromUserModel(&users[i])
		if err != nil {
			return nil, err
		}
		byID[users[i].ID] = u
	}
	for _, m := range o.Members {
		m.User = byID[m.UserID.String()]
	}
	return o, nil
}
