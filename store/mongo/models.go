package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/internal/entity"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
)

// --- Message models ---

type messageModel struct {
	ID           string         `bson:"_id"`
	Content      string         `bson:"content"`
	Organisation string         `bson:"organisation"`
	Author       string         `bson:"author"`
	Attempts     []attemptModel `bson:"attempts"`
	Version      int64          `bson:"version"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

// attemptModel stores an unassigned donor and a chain root's predecessor as "".
type attemptModel struct {
	ID              string    `bson:"_id"`
	State           string    `bson:"state"`
	Recipient       string    `bson:"recipient"`
	Donor           string    `bson:"donor"`
	PreviousAttempt string    `bson:"previous_attempt"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toMessageModel(m *message.Message) *messageModel {
	attempts := make([]attemptModel, len(m.Attempts))
	for i, a := range m.Attempts {
		attempts[i] = attemptModel{
			ID:              a.ID.String(),
			State:           string(a.State),
			Recipient:       a.Recipient.String(),
			Donor:           a.Donor.String(),
			PreviousAttempt: a.PreviousAttempt.String(),
			CreatedAt:       a.CreatedAt,
			UpdatedAt:       a.UpdatedAt,
		}
	}
	return &messageModel{
		ID:           m.ID.String(),
		Content:      m.Content,
		Organisation: m.OrganisationID.String(),
		Author:       m.AuthorID.String(),
		Attempts:     attempts,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromMessageModel(mm *messageModel) (*message.Message, error) {
	msgID, err := id.ParseMessageID(mm.ID)
	if err != nil {
		return nil, fmt.Errorf("parse message ID %q: %w", mm.ID, err)
	}
	orgID, err := id.ParseOrganisationID(mm.Organisation)
	if err != nil {
		return nil, fmt.Errorf("parse organisation ID %q: %w", mm.Organisation, err)
	}
	authorID, err := parseOptional(mm.Author)
	if err != nil {
		return nil, fmt.Errorf("parse author ID %q: %w", mm.Author, err)
	}

	m := &message.Message{
		Entity:         entity.Entity{CreatedAt: mm.CreatedAt, UpdatedAt: mm.UpdatedAt},
		ID:             msgID,
		Content:        mm.Content,
		OrganisationID: orgID,
		AuthorID:       authorID,
		Attempts:       make([]*attempt.Attempt, 0, len(mm.Attempts)),
		Version:        mm.Version,
	}

	for _, am := range mm.Attempts {
		a, err := fromAttemptModel(am)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", mm.ID, err)
		}
		m.Attempts = append(m.Attempts, a)
	}
	return m, nil
}

func fromAttemptModel(am attemptModel) (*attempt.Attempt, error) {
	attID, err := id.ParseAttemptID(am.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", am.ID, err)
	}
	state, err := attempt.ParseState(am.State)
	if err != nil {
		return nil, err
	}
	recipient, err := parseOptional(am.Recipient)
	if err != nil {
		return nil, fmt.Errorf("parse recipient %q: %w", am.Recipient, err)
	}
	donor, err := parseOptional(am.Donor)
	if err != nil {
		return nil, fmt.Errorf("parse donor %q: %w", am.Donor, err)
	}
	prev, err := parseOptional(am.PreviousAttempt)
	if err != nil {
		return nil, fmt.Errorf("parse previous attempt %q: %w", am.PreviousAttempt, err)
	}
	return &attempt.Attempt{
		Entity:          entity.Entity{CreatedAt: am.CreatedAt, UpdatedAt: am.UpdatedAt},
		ID:              attID,
		State:           state,
		Recipient:       recipient,
		Donor:           donor,
		PreviousAttempt: prev,
	}, nil
}

// --- Organisation models ---

type organisationModel struct {
	ID        string        `bson:"_id"`
	Name      string        `bson:"name"`
	Members   []memberModel `bson:"members"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type memberModel struct {
	ID          string     `bson:"_id"`
	Role        string     `bson:"role"`
	User        string     `bson:"user"`
	ConfirmedOn *time.Time `bson:"confirmed_on,omitempty"`
	DeletedOn   *time.Time `bson:"deleted_on,omitempty"`
}

func toOrganisationModel(o *org.Organisation) *organisationModel {
	members := make([]memberModel, len(o.Members))
	for i, m := range o.Members {
		members[i] = memberModel{
			ID:          m.ID.String(),
			Role:        string(m.Role),
			User:        m.UserID.String(),
			ConfirmedOn: m.ConfirmedOn,
			DeletedOn:   m.DeletedOn,
		}
	}
	return &organisationModel{
		ID:        o.ID.String(),
		Name:      o.Name,
		Members:   members,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func fromOrganisationModel(om *organisationModel) (*org.Organisation, error) {
	orgID, err := id.ParseOrganisationID(om.ID)
	if err != nil {
		return nil, fmt.Errorf("parse organisation ID %q: %w", om.ID, err)
	}
	o := &org.Organisation{
		Entity:  entity.Entity{CreatedAt: om.CreatedAt, UpdatedAt: om.UpdatedAt},
		ID:      orgID,
		Name:    om.Name,
		Members: make([]*org.Member, 0, len(om.Members)),
	}
	for _, mm := range om.Members {
		memID, err := parseOptional(mm.ID)
		if err != nil {
			return nil, fmt.Errorf("parse member ID %q: %w", mm.ID, err)
		}
		userID, err := id.ParseUserID(mm.User)
		if err != nil {
			return nil, fmt.Errorf("parse member user %q: %w", mm.User, err)
		}
		o.Members = append(o.Members, &org.Member{
			ID:          memID,
			Role:        org.Role(mm.Role),
			UserID:      userID,
			ConfirmedOn: mm.ConfirmedOn,
			DeletedOn:   mm.DeletedOn,
		})
	}
	return o, nil
}

// --- User models ---

type userModel struct {
	ID          string     `bson:"_id"`
	PhoneNumber string     `bson:"phone_number,omitempty"`
	Locale      string     `bson:"locale"`
	VerifiedOn  *time.Time `bson:"verified_on,omitempty"`
	PushToken   string     `bson:"push_token,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toUserModel(u *org.User) *userModel {
	return &userModel{
		ID:          u.ID.String(),
		PhoneNumber: u.PhoneNumber,
		Locale:      u.Locale,
		VerifiedOn:  u.VerifiedOn,
		PushToken:   u.PushToken,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func fromUserModel(um *userModel) (*org.User, error) {
	userID, err := id.ParseUserID(um.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user ID %q: %w", um.ID, err)
	}
	return &org.User{
		Entity:      entity.Entity{CreatedAt: um.CreatedAt, UpdatedAt: um.UpdatedAt},
		ID:          userID,
		PhoneNumber: um.PhoneNumber,
		Locale:      um.Locale,
		VerifiedOn:  um.VerifiedOn,
		PushToken:   um.PushToken,
	}, nil
}

// parseOptional parses s, mapping "" to id.Nil.
func parseOptional(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}
