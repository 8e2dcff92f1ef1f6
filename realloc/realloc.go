// Package realloc decides what happens after a relay attempt fails.
//
// Given an attempt that has just entered the retry set, the engine either
// hands the job to a donor who has not yet tried it, falls back to the
// carrier gateway, or gives up. The engine is a pure decision step: it
// mutates the in-memory message through a journal and performs no I/O.
package realloc

import (
	"time"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
)

// Kind is the outcome of processing one failed attempt.
type Kind int

const (
	// Skipped means the attempt needed no action.
	Skipped Kind = iota

	// Reallocated means a successor attempt was created for another donor.
	Reallocated

	// Twilio means the failed attempt must be sent through the carrier gateway.
	Twilio

	// NoSenders means every option is exhausted.
	NoSenders
)

// String returns the outcome name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case Reallocated:
		return "reallocated"
	case Twilio:
		return "twilio"
	case NoSenders:
		return "no_senders"
	default:
		return "skipped"
	}
}

// Outcome is the result of ProcessAttempt.
type Outcome struct {
	Kind Kind

	// Attempt is the processed attempt.
	Attempt *attempt.Attempt

	// NewAttempt is the successor created on Reallocated.
	NewAttempt *attempt.Attempt

	// NewDonor is the successor's donor on Reallocated.
	NewDonor id.ID

	// Reason explains a Skipped outcome.
	Reason string
}

// FallbackPolicy controls when exhaustion escalates to the carrier gateway.
type FallbackPolicy int

const (
	// FallbackChainRoot uses the carrier only when the exhausted attempt is
	// the first of its chain. A chain that was already reallocated ends in
	// NoSenders.
	FallbackChainRoot FallbackPolicy = iota

	// FallbackOnExhaustion uses the carrier whenever peers are exhausted,
	// at most once per recipient and message.
	FallbackOnExhaustion
)

// Engine processes failed attempts. It holds no mutable state.
type Engine struct {
	policy FallbackPolicy
}

// NewEngine creates an engine with the given fallback policy.
func NewEngine(policy FallbackPolicy) *Engine {
	return &Engine{policy: policy}
}

// ProcessAttempt handles a, which must belong to m and sit in the retry set.
// Donor eligibility is evaluated against o at now; a nil o leaves the
// message untouched. Every mutation is made
// through j so it can be replayed after a write conflict.
func (e *Engine) ProcessAttempt(j *message.Journal, m *message.Message, a *attempt.Attempt, o *org.Organisation, now time.Time) Outcome {
	if !a.State.IsRetryable() {
		return Outcome{Kind: Skipped, Attempt: a, Reason: "not in retry set"}
	}
	if m.Successor(a) != nil {
		return Outcome{Kind: Skipped, Attempt: a, Reason: "already superseded"}
	}
	if o == nil {
		return Outcome{Kind: Skipped, Attempt: a, Reason: "organisation unavailable"}
	}

	open := m.OpenAttempt(a.Recipient)

	if open == nil {
		if donor, ok := e.nextDonor(m, a, o, now); ok {
			next := attempt.New(a.Recipient, donor, a.ID, now)
			if err := j.Append(m, next, now); err == nil {
				return Outcome{Kind: Reallocated, Attempt: a, NewAttempt: next, NewDonor: donor}
			}
		}
	}

	if open == nil && e.allowsFallback(m, a) {
		if err := j.SetState(m, a, attempt.Twilio, now); err == nil {
			return Outcome{Kind: Twilio, Attempt: a}
		}
	}

	if err := j.SetState(m, a, attempt.NoSenders, now); err != nil {
		return Outcome{Kind: Skipped, Attempt: a, Reason: err.Error()}
	}
	return Outcome{Kind: NoSenders, Attempt: a}
}

// nextDonor picks the lowest-ID eligible donor not yet used in a's chain.
func (e *Engine) nextDonor(m *message.Message, a *attempt.Attempt, o *org.Organisation, now time.Time) (id.ID, bool) {
	used := m.UsedDonors(a)

	var candidates []id.ID
	for _, d := range o.Donors(now) {
		if used.Has(d) || d == a.Recipient {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return id.Nil, false
	}

	org.SortIDs(candidates)
	return candidates[0], true
}

func (e *Engine) allowsFallback(m *message.Message, a *attempt.Attempt) bool {
	for _, other := range m.Attempts {
		if other.Recipient == a.Recipient && other.State == attempt.Twilio {
			return false
		}
	}

	switch e.policy {
	case FallbackOnExhaustion:
		return true
	default:
		return a.PreviousAttempt.IsNil()
	}
}
