// Package attempt defines a single relay job and the states it moves through.
//
// An attempt asks one donor to forward one message to one recipient. Only a
// Pending attempt is open; every other state is a settled outcome. Settled
// outcomes in the retry set feed the reallocation engine, which may escalate
// them to carrier fallback (Twilio) or exhaustion (NoSenders).
package attempt

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/internal/entity"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("attempt: invalid state transition")

// State represents the current state of an attempt.
type State string

const (
	// Pending is the initial state: the donor has been asked and has not answered.
	Pending State = "PENDING"

	// Success means the donor forwarded the content.
	Success State = "SUCCESS"

	// Failed means the donor's device tried and failed to send.
	Failed State = "FAILED"

	// Rejected means the donor declined the job.
	Rejected State = "REJECTED"

	// NoService means the donor's device had no cellular service.
	NoService State = "NO_SERVICE"

	// NoSmsData means the donor's device could not read the job.
	NoSmsData State = "NO_SMS_DATA"

	// RadioOff means the donor's radio was switched off.
	RadioOff State = "RADIO_OFF"

	// NoResponse means the donor never reported back before the deadline.
	NoResponse State = "NO_RESPONSE"

	// Twilio means the content was handed to the carrier gateway instead.
	Twilio State = "TWILIO"

	// NoSenders means every relay option is exhausted.
	NoSenders State = "NO_SENDERS"
)

var allStates = []State{
	Pending, Success, Failed, Rejected, NoService, NoSmsData, RadioOff, NoResponse, Twilio, NoSenders,
}

// RetryStates are the settled states that trigger reallocation.
var RetryStates = []State{Failed, Rejected, NoService, NoSmsData, RadioOff, NoResponse}

// ReportableStates are the states a donor's device may report.
var ReportableStates = []State{Success, Failed, Rejected, NoService, NoSmsData, RadioOff}

// ParseState converts a wire value into a State.
func ParseState(s string) (State, error) {
	for _, st := range allStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("attempt: unknown state %q", s)
}

// IsTerminal reports whether the attempt is no longer waiting on a donor.
func (s State) IsTerminal() bool { return s != Pending }

// IsRetryable reports whether s is in the retry set.
func (s State) IsRetryable() bool {
	switch s {
	case Failed, Rejected, NoService, NoSmsData, RadioOff, NoResponse:
		return true
	default:
		return false
	}
}

// IsFinal reports whether s can never change again.
func (s State) IsFinal() bool { return s == Success || s == NoSenders }

// IsReportable reports whether a donor's device may set s.
func (s State) IsReportable() bool {
	return s == Success || (s.IsRetryable() && s != NoResponse)
}

// CanTransition reports whether an attempt in from may move to to.
//
//	Pending        -> any other state
//	retry set      -> Twilio, NoSenders
//	Twilio         -> NoSenders
func CanTransition(from, to State) bool {
	if from == to {
		return false
	}
	switch {
	case from == Pending:
		return to != Pending && validState(to)
	case from.IsRetryable():
		return to == Twilio || to == NoSenders
	case from == Twilio:
		return to == NoSenders
	default:
		return false
	}
}

func validState(s State) bool {
	for _, st := range allStates {
		if st == s {
			return true
		}
	}
	return false
}

// Attempt is one relay job: "donor, please forward this message to recipient".
type Attempt struct {
	entity.Entity

	// ID identifies the attempt within its message.
	ID id.ID `json:"id"`

	// State is the current attempt state.
	State State `json:"state"`

	// Recipient is the subscriber's user ID.
	Recipient id.ID `json:"recipient"`

	// Donor is the donor's user ID. Nil when no donor could be allocated.
	Donor id.ID `json:"donor,omitempty"`

	// PreviousAttempt is the attempt this one supersedes, Nil for a chain root.
	PreviousAttempt id.ID `json:"previous_attempt,omitempty"`
}

// New creates a Pending attempt.
func New(recipient, donor, previous id.ID, now time.Time) *Attempt {
	return &Attempt{
		Entity:          entity.At(now),
		ID:              id.NewAttemptID(),
		State:           Pending,
		Recipient:       recipient,
		Donor:           donor,
		PreviousAttempt: previous,
	}
}

// Transition moves the attempt to state to.
func (a *Attempt) Transition(to State, now time.Time) error {
	if !CanTransition(a.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, to)
	}
	a.State = to
	a.Touch(now)
	return nil
}

// Clone returns a copy of a.
func (a *Attempt) Clone() *Attempt {
	c := *a
	return &c
}
