package message_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
)

func TestChainAndUsedDonors(t *testing.T) {
	now := time.Now()
	recipient := id.NewUserID()
	d1, d2, d3 := id.NewUserID(), id.NewUserID(), id.NewUserID()

	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)

	a1 := attempt.New(recipient, d1, id.Nil, now)
	a1.State = attempt.Failed
	a2 := attempt.New(recipient, d2, a1.ID, now)
	a2.State = attempt.Rejected
	a3 := attempt.New(recipient, d3, a2.ID, now)

	for _, a := range []*attempt.Attempt{a1, a2, a3} {
		if err := m.Append(a); err != nil {
			t.Fatal(err)
		}
	}

	chain := m.Chain(a3)
	if len(chain) != 3 || chain[0] != a3 || chain[2] != a1 {
		t.Fatalf("unexpected chain %v", chain)
	}

	used := m.UsedDonors(a3)
	for _, d := range []id.ID{d1, d2, d3} {
		if !used.Has(d) {
			t.Fatalf("expected %s in used donors", d)
		}
	}

	if got := m.Successor(a1); got != a2 {
		t.Fatalf("Successor(a1) = %v", got)
	}
	if got := m.Successor(a3); got != nil {
		t.Fatalf("Successor(a3) = %v, want nil", got)
	}
}

func TestChainStopsOnCycle(t *testing.T) {
	now := time.Now()
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)

	a1 := attempt.New(id.NewUserID(), id.NewUserID(), id.Nil, now)
	a2 := attempt.New(a1.Recipient, id.NewUserID(), a1.ID, now)
	a1.PreviousAttempt = a2.ID
	m.Attempts = append(m.Attempts, a1, a2)

	if got := len(m.Chain(a2)); got != 2 {
		t.Fatalf("chain length = %d, want 2", got)
	}
}

func TestAppendRefusesSecondOpenAttempt(t *testing.T) {
	now := time.Now()
	recipient := id.NewUserID()
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)

	if err := m.Append(attempt.New(recipient, id.NewUserID(), id.Nil, now)); err != nil {
		t.Fatal(err)
	}

	err := m.Append(attempt.New(recipient, id.NewUserID(), id.Nil, now))
	if !errors.Is(err, message.ErrOpenAttempt) {
		t.Fatalf("expected ErrOpenAttempt, got %v", err)
	}
	if len(m.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(m.Attempts))
	}
}

func TestPendingBefore(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", base)

	old := attempt.New(id.NewUserID(), id.NewUserID(), id.Nil, base)
	fresh := attempt.New(id.NewUserID(), id.NewUserID(), id.Nil, base.Add(time.Hour))
	done := attempt.New(id.NewUserID(), id.NewUserID(), id.Nil, base)
	done.State = attempt.Success
	m.Attempts = append(m.Attempts, old, fresh, done)

	got := m.PendingBefore(base.Add(30 * time.Minute))
	if len(got) != 1 || got[0] != old {
		t.Fatalf("PendingBefore = %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)
	_ = m.Append(attempt.New(id.NewUserID(), id.NewUserID(), id.Nil, now))

	c := m.Clone()
	c.Attempts[0].State = attempt.Success

	if m.Attempts[0].State != attempt.Pending {
		t.Fatal("clone shares attempts with the original")
	}
}

func TestJournalReplay(t *testing.T) {
	now := time.Now()
	recipient := id.NewUserID()
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)
	a1 := attempt.New(recipient, id.NewUserID(), id.Nil, now)
	_ = m.Append(a1)

	stored := m.Clone()

	var j message.Journal
	if err := j.SetState(m, m.Attempt(a1.ID), attempt.Failed, now); err != nil {
		t.Fatal(err)
	}
	a2 := attempt.New(recipient, id.NewUserID(), a1.ID, now)
	if err := j.Append(m, a2, now); err != nil {
		t.Fatal(err)
	}

	applied, dropped := j.Replay(stored)
	if applied != 2 || len(dropped) != 0 {
		t.Fatalf("applied=%d dropped=%d", applied, len(dropped))
	}
	if stored.Attempt(a1.ID).State != attempt.Failed {
		t.Fatal("state change not replayed")
	}
	if stored.Attempt(a2.ID) == nil {
		t.Fatal("append not replayed")
	}
}

func TestJournalReplayDropsStaleChanges(t *testing.T) {
	now := time.Now()
	recipient := id.NewUserID()
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)
	a1 := attempt.New(recipient, id.NewUserID(), id.Nil, now)
	_ = m.Append(a1)

	// Another writer already settled the attempt.
	stored := m.Clone()
	stored.Attempt(a1.ID).State = attempt.Success

	var j message.Journal
	_ = j.SetState(m, m.Attempt(a1.ID), attempt.NoResponse, now)
	_ = j.Append(m, attempt.New(recipient, id.NewUserID(), a1.ID, now), now)

	applied, dropped := j.Replay(stored)
	if applied != 0 || len(dropped) != 2 {
		t.Fatalf("applied=%d dropped=%d", applied, len(dropped))
	}
	if len(stored.Attempts) != 1 {
		t.Fatalf("expected no new attempt, got %d", len(stored.Attempts))
	}
}

func TestStaleIncludesUnassigned(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", base)

	donor := id.NewUserID()
	assigned := attempt.New(id.NewUserID(), donor, id.Nil, base)
	unassigned := attempt.New(id.NewUserID(), id.Nil, id.Nil, base)
	m.Attempts = append(m.Attempts, assigned, unassigned)

	if got := m.Stale(base, false); len(got) != 0 {
		t.Fatalf("Stale(false) = %v", got)
	}
	if got := m.Stale(base, true); len(got) != 1 || got[0] != unassigned {
		t.Fatalf("Stale(true) = %v", got)
	}
	if got := m.PendingFor(donor); len(got) != 1 || got[0] != assigned {
		t.Fatalf("PendingFor = %v", got)
	}
}
