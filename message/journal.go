package message

import (
	"fmt"
	"time"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
)

// ChangeKind identifies a journalled mutation.
type ChangeKind int

const (
	// ChangeState moves an existing attempt from one state to another.
	ChangeState ChangeKind = iota

	// ChangeAppend adds a new attempt.
	ChangeAppend
)

// Change is one mutation applied to a message during a processing pass.
type Change struct {
	Kind      ChangeKind
	AttemptID id.ID
	From      attempt.State
	To        attempt.State
	Attempt   *attempt.Attempt
	At        time.Time
}

// Journal records the mutations a pass made to one message so they can be
// replayed onto a fresher copy after an optimistic concurrency conflict.
type Journal struct {
	changes []Change
}

// SetState transitions a inside m and records the change.
func (j *Journal) SetState(m *Message, a *attempt.Attempt, to attempt.State, now time.Time) error {
	from := a.State
	if err := a.Transition(to, now); err != nil {
		return err
	}
	m.Touch(now)
	j.changes = append(j.changes, Change{Kind: ChangeState, AttemptID: a.ID, From: from, To: to, At: now})
	return nil
}

// Append adds a to m and records the change.
func (j *Journal) Append(m *Message, a *attempt.Attempt, now time.Time) error {
	if err := m.Append(a); err != nil {
		return err
	}
	m.Touch(now)
	j.changes = append(j.changes, Change{Kind: ChangeAppend, AttemptID: a.ID, Attempt: a.Clone(), At: now})
	return nil
}

// Len returns the number of recorded changes.
func (j *Journal) Len() int { return len(j.changes) }

// Changes returns the recorded changes in order.
func (j *Journal) Changes() []Change {
	out := make([]Change, len(j.changes))
	copy(out, j.changes)
	return out
}

// Replay applies the journal to m. A change whose precondition no longer
// holds (another writer moved the attempt first) is dropped, as is any append
// whose predecessor change was dropped.
func (j *Journal) Replay(m *Message) (applied int, dropped []Change) {
	skipped := id.NewSet()

	for _, c := range j.changes {
		var err error
		switch c.Kind {
		case ChangeState:
			err = replayState(m, c)
		case ChangeAppend:
			if skipped.Has(c.Attempt.PreviousAttempt) {
				err = fmt.Errorf("predecessor %s not replayed", c.Attempt.PreviousAttempt)
				break
			}
			err = replayAppend(m, c)
		}

		if err != nil {
			skipped.Add(c.AttemptID)
			dropped = append(dropped, c)
			continue
		}
		m.Touch(c.At)
		applied++
	}
	return applied, dropped
}

func replayState(m *Message, c Change) error {
	a := m.Attempt(c.AttemptID)
	if a == nil {
		return fmt.Errorf("attempt %s not found", c.AttemptID)
	}
	if a.State != c.From {
		return fmt.Errorf("attempt %s is %s, expected %s", a.ID, a.State, c.From)
	}
	return a.Transition(c.To, c.At)
}

func replayAppend(m *Message, c Change) error {
	if m.Attempt(c.AttemptID) != nil {
		return fmt.Errorf("attempt %s already present", c.AttemptID)
	}
	return m.Append(c.Attempt.Clone())
}
