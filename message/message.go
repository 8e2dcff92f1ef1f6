// Package message defines a relayed message and the arena of attempts it owns.
//
// Attempts are stored in an append-only slice and refer to their predecessor
// by identity, never by pointer, so a message can be serialised as a single
// document. A chain of attempts for one recipient is the singly linked list
// formed by following PreviousAttempt from the newest attempt to the root.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/internal/entity"
)

// ErrOpenAttempt is returned when appending an attempt for a recipient that
// still has a non-terminal attempt.
var ErrOpenAttempt = errors.New("message: recipient already has an open attempt")

// Message is one piece of content authored for one organisation.
type Message struct {
	entity.Entity

	// ID is the unique TypeID for this message.
	ID id.ID `json:"id"`

	// Content is the text relayed to every subscriber.
	Content string `json:"content"`

	// OrganisationID references the owning organisation.
	OrganisationID id.ID `json:"organisation"`

	// AuthorID references the coordinator who wrote the message.
	AuthorID id.ID `json:"author"`

	// Attempts is the append-only attempt arena.
	Attempts []*attempt.Attempt `json:"attempts"`

	// Version is the optimistic concurrency counter maintained by stores.
	Version int64 `json:"-"`
}

// New creates an empty message.
func New(orgID, authorID id.ID, content string, now time.Time) *Message {
	return &Message{
		Entity:         entity.At(now),
		ID:             id.NewMessageID(),
		Content:        content,
		OrganisationID: orgID,
		AuthorID:       authorID,
	}
}

// Attempt returns the attempt with the given ID, or nil.
func (m *Message) Attempt(attemptID id.ID) *attempt.Attempt {
	for _, a := range m.Attempts {
		if a.ID == attemptID {
			return a
		}
	}
	return nil
}

// Chain returns a and its predecessors, newest first.
// A dangling or repeated back-reference ends the walk.
func (m *Message) Chain(a *attempt.Attempt) []*attempt.Attempt {
	chain := []*attempt.Attempt{a}
	seen := id.NewSet()
	seen.Add(a.ID)

	cur := a
	for !cur.PreviousAttempt.IsNil() {
		prev := m.Attempt(cur.PreviousAttempt)
		if prev == nil || !seen.Add(prev.ID) {
			break
		}
		chain = append(chain, prev)
		cur = prev
	}
	return chain
}

// UsedDonors returns the donors that already appear in a's chain.
func (m *Message) UsedDonors(a *attempt.Attempt) *id.Set {
	used := id.NewSet()
	for _, c := range m.Chain(a) {
		used.Add(c.Donor)
	}
	return used
}

// Successor returns the attempt that supersedes a, or nil.
func (m *Message) Successor(a *attempt.Attempt) *attempt.Attempt {
	for _, c := range m.Attempts {
		if c.PreviousAttempt == a.ID {
			return c
		}
	}
	return nil
}

// OpenAttempt returns the recipient's non-terminal attempt, or nil.
func (m *Message) OpenAttempt(recipient id.ID) *attempt.Attempt {
	for _, a := range m.Attempts {
		if a.Recipient == recipient && !a.State.IsTerminal() {
			return a
		}
	}
	return nil
}

// Append adds a new attempt, refusing a second open attempt for one recipient.
func (m *Message) Append(a *attempt.Attempt) error {
	if !a.State.IsTerminal() {
		if open := m.OpenAttempt(a.Recipient); open != nil {
			return fmt.Errorf("%w: %s", ErrOpenAttempt, open.ID)
		}
	}
	m.Attempts = append(m.Attempts, a)
	return nil
}

// PendingBefore returns the pending attempts created before deadline.
func (m *Message) PendingBefore(deadline time.Time) []*attempt.Attempt {
	var out []*attempt.Attempt
	for _, a := range m.Attempts {
		if a.State == attempt.Pending && a.CreatedAt.Before(deadline) {
			out = append(out, a)
		}
	}
	return out
}

// Stale returns the pending attempts that are due for a timeout at deadline:
// those created before it, plus those without a donor when unassigned is set.
func (m *Message) Stale(deadline time.Time, unassigned bool) []*attempt.Attempt {
	var out []*attempt.Attempt
	for _, a := range m.Attempts {
		if a.State != attempt.Pending {
			continue
		}
		if a.CreatedAt.Before(deadline) || (unassigned && a.Donor.IsNil()) {
			out = append(out, a)
		}
	}
	return out
}

// PendingFor returns the pending attempts assigned to donor.
func (m *Message) PendingFor(donor id.ID) []*attempt.Attempt {
	var out []*attempt.Attempt
	for _, a := range m.Attempts {
		if a.State == attempt.Pending && a.Donor == donor {
			out = append(out, a)
		}
	}
	return out
}

// HasPending reports whether any attempt is still pending.
func (m *Message) HasPending() bool {
	for _, a := range m.Attempts {
		if a.State == attempt.Pending {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	c := *m
	c.Attempts = make([]*attempt.Attempt, len(m.Attempts))
	for i, a := range m.Attempts {
		c.Attempts[i] = a.Clone()
	}
	return &c
}
