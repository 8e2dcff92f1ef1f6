// Package allocate assigns subscribers to donors.
package allocate

import "github.com/xraph/smsrelay/id"

// Assignment pairs one recipient with the donor asked to relay to them.
type Assignment struct {
	Recipient id.ID
	Donor     id.ID
}

// Allocation is the ordered result of one allocation call.
type Allocation struct {
	Assignments []Assignment
}

// RoundRobin assigns each subscriber, in input order, the next donor in a
// cyclic rotation over donors. Donor order is used as given. Either list
// being empty yields an empty allocation.
func RoundRobin(subscribers, donors []id.ID) Allocation {
	if len(subscribers) == 0 || len(donors) == 0 {
		return Allocation{}
	}

	out := make([]Assignment, len(subscribers))
	for i, s := range subscribers {
		out[i] = Assignment{Recipient: s, Donor: donors[i%len(donors)]}
	}
	return Allocation{Assignments: out}
}

// Len returns the number of assignments.
func (a Allocation) Len() int { return len(a.Assignments) }

// Map returns the allocation keyed by recipient.
func (a Allocation) Map() map[id.ID]id.ID {
	m := make(map[id.ID]id.ID, len(a.Assignments))
	for _, as := range a.Assignments {
		m[as.Recipient] = as.Donor
	}
	return m
}

// Donor returns the donor assigned to recipient.
func (a Allocation) Donor(recipient id.ID) (id.ID, bool) {
	for _, as := range a.Assignments {
		if as.Recipient == recipient {
			return as.Donor, true
		}
	}
	return id.Nil, false
}

// Donors returns the distinct donors that received work, in first-use order.
func (a Allocation) Donors() []id.ID {
	set := id.NewSet()
	for _, as := range a.Assignments {
		set.Add(as.Donor)
	}
	return set.Slice()
}
