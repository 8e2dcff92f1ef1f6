package redis

import (
	"fmt"
	"time"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/internal/entity"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
)

// messageModel is the JSON representation stored in Redis.
type messageModel struct {
	ID           string         `json:"id"`
	Content      string         `json:"content"`
	Organisation string         `json:"organisation"`
	Author       string         `json:"author"`
	Attempts     []attemptModel `json:"attempts"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type attemptModel struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	Recipient       string    `json:"recipient"`
	Donor           string    `json:"donor,omitempty"`
	PreviousAttempt string    `json:"previous_attempt,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
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
		return nil, err
	}
	donor, err := parseOptional(am.Donor)
	if err != nil {
		return nil, err
	}
	prev, err := parseOptional(am.PreviousAttempt)
	if err != nil {
		return nil, err
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

// organisationModel stores members by user ID; users are resolved on read.
type organisationModel struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Members   []memberModel `json:"members"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type memberModel struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	User        string     `json:"user"`
	ConfirmedOn *time.Time `json:"confirmed_on,omitempty"`
	DeletedOn   *time.Time `json:"deleted_on,omitempty"`
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
			return nil, err
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

// parseOptional parses s, mapping "" to id.Nil.
func parseOptional(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}
