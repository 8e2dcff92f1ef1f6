package allocate_test

import (
	"testing"

	"github.com/xraph/smsrelay/allocate"
	"github.com/xraph/smsrelay/id"
)

func TestRoundRobinCycles(t *testing.T) {
	s1, s2, s3 := id.NewUserID(), id.NewUserID(), id.NewUserID()
	d1, d2 := id.NewUserID(), id.NewUserID()

	got := allocate.RoundRobin([]id.ID{s1, s2, s3}, []id.ID{d1, d2}).Map()

	want := map[id.ID]id.ID{s1: d1, s2: d2, s3: d1}
	if len(got) != len(want) {
		t.Fatalf("got %d assignments, want %d", len(got), len(want))
	}
	for s, d := range want {
		if got[s] != d {
			t.Errorf("%s assigned %s, want %s", s, got[s], d)
		}
	}
}

func TestRoundRobinDeterministic(t *testing.T) {
	subs := []id.ID{id.NewUserID(), id.NewUserID(), id.NewUserID(), id.NewUserID()}
	donors := []id.ID{id.NewUserID(), id.NewUserID(), id.NewUserID()}

	first := allocate.RoundRobin(subs, donors)
	for range 10 {
		again := allocate.RoundRobin(subs, donors)
		for i := range first.Assignments {
			if first.Assignments[i] != again.Assignments[i] {
				t.Fatalf("assignment %d differs between calls", i)
			}
		}
	}
}

func TestRoundRobinPreservesSubscriberOrder(t *testing.T) {
	subs := []id.ID{id.NewUserID(), id.NewUserID(), id.NewUserID()}
	a := allocate.RoundRobin(subs, []id.ID{id.NewUserID()})

	for i, as := range a.Assignments {
		if as.Recipient != subs[i] {
			t.Fatalf("assignment %d is for %s, want %s", i, as.Recipient, subs[i])
		}
	}
}

func TestRoundRobinEmptyInputs(t *testing.T) {
	some := []id.ID{id.NewUserID()}

	if n := allocate.RoundRobin(nil, some).Len(); n != 0 {
		t.Fatalf("no subscribers: got %d assignments", n)
	}
	if n := allocate.RoundRobin(some, nil).Len(); n != 0 {
		t.Fatalf("no donors: got %d assignments", n)
	}
}

func TestDonorsDistinctInFirstUseOrder(t *testing.T) {
	subs := []id.ID{id.NewUserID(), id.NewUserID(), id.NewUserID()}
	d1, d2, d3 := id.NewUserID(), id.NewUserID(), id.NewUserID()

	got := allocate.RoundRobin(subs, []id.ID{d1, d2}).Donors()
	if len(got) != 2 || got[0] != d1 || got[1] != d2 {
		t.Fatalf("Donors() = %v", got)
	}

	got = allocate.RoundRobin(subs[:1], []id.ID{d3, d1}).Donors()
	if len(got) != 1 || got[0] != d3 {
		t.Fatalf("Donors() = %v", got)
	}
}
