// Package org models organisations, their members and the users behind them,
// and decides which members may take part in an allocation.
package org

import (
	"context"
	"sort"
	"time"

	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/internal/entity"
)

// Role is a member's function inside an organisation.
type Role string

const (
	// RoleCoordinator authors messages and manages membership.
	RoleCoordinator Role = "coordinator"

	// RoleDonor relays content from their own phone.
	RoleDonor Role = "donor"

	// RoleSubscriber receives relayed content.
	RoleSubscriber Role = "subscriber"
)

// User is a phone-number-addressable identity.
type User struct {
	entity.Entity

	ID          id.ID      `json:"id"`
	PhoneNumber string     `json:"phone_number"`
	Locale      string     `json:"locale"`
	VerifiedOn  *time.Time `json:"verified_on,omitempty"`
	PushToken   string     `json:"push_token,omitempty"`
}

// Verified reports whether the user verified their number at or before now.
func (u *User) Verified(now time.Time) bool {
	return u.VerifiedOn != nil && !u.VerifiedOn.After(now)
}

// Member links a user to an organisation with a role.
type Member struct {
	ID          id.ID      `json:"id"`
	Role        Role       `json:"role"`
	UserID      id.ID      `json:"user"`
	ConfirmedOn *time.Time `json:"confirmed_on,omitempty"`
	DeletedOn   *time.Time `json:"deleted_on,omitempty"`

	// User is resolved by the store when the organisation is loaded.
	User *User `json:"-"`
}

// Active reports whether the member holds role and may take part at now.
func (m *Member) Active(role Role, now time.Time) bool {
	return m.Role == role &&
		m.ConfirmedOn != nil && !m.ConfirmedOn.After(now) &&
		m.DeletedOn == nil &&
		m.User != nil && m.User.Verified(now)
}

// Organisation aggregates members.
type Organisation struct {
	entity.Entity

	ID      id.ID     `json:"id"`
	Name    string    `json:"name"`
	Members []*Member `json:"members"`
}

// ActiveMembers returns the members active in role at now, in roster order.
func (o *Organisation) ActiveMembers(role Role, now time.Time) []*Member {
	var out []*Member
	for _, m := range o.Members {
		if m.Active(role, now) {
			out = append(out, m)
		}
	}
	return out
}

// Donors returns the user IDs of donors eligible at now, in roster order.
// A donor needs a registered push token on top of being active.
func (o *Organisation) Donors(now time.Time) []id.ID {
	var out []id.ID
	for _, m := range o.ActiveMembers(RoleDonor, now) {
		if m.User.PushToken != "" {
			out = append(out, m.UserID)
		}
	}
	return out
}

// Subscribers returns the user IDs of active subscribers, in roster order.
func (o *Organisation) Subscribers(now time.Time) []id.ID {
	members := o.ActiveMembers(RoleSubscriber, now)
	out := make([]id.ID, 0, len(members))
	for _, m := range members {
		out = append(out, m.UserID)
	}
	return out
}

// IsCoordinator reports whether userID is an active coordinator at now.
func (o *Organisation) IsCoordinator(userID id.ID, now time.Time) bool {
	for _, m := range o.ActiveMembers(RoleCoordinator, now) {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// User returns the resolved user for userID, or nil.
func (o *Organisation) User(userID id.ID) *User {
	for _, m := range o.Members {
		if m.UserID == userID && m.User != nil {
			return m.User
		}
	}
	return nil
}

// SortIDs orders ids ascending in place.
func SortIDs(ids []id.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
}

// Store defines the persistence contract for organisations and users.
type Store interface {
	// CreateUser persists a user.
	CreateUser(ctx context.Context, u *User) error

	// GetUser returns a user by ID.
	GetUser(ctx context.Context, userID id.ID) (*User, error)

	// CreateOrganisation persists an organisation with its members.
	CreateOrganisation(ctx context.Context, o *Organisation) error

	// GetOrganisation returns an organisation with every member's User resolved.
	GetOrganisation(ctx context.Context, orgID id.ID) (*Organisation, error)
}
