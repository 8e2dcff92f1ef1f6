package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
)

func ctx() context.Context { return context.Background() }

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, smsrelay.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// message.Store
// ──────────────────────────────────────────────────

func newMessage(t *testing.T, donor id.ID, created time.Time) (*message.Message, *attempt.Attempt) {
	t.Helper()
	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", created)
	a := attempt.New(id.NewUserID(), donor, id.Nil, created)
	if err := m.Append(a); err != nil {
		t.Fatal(err)
	}
	return m, a
}

func TestMessageVersioning(t *testing.T) {
	s := New()
	m, a := newMessage(t, id.NewUserID(), base)

	if err := s.CreateMessage(ctx(), m); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateMessage(ctx(), m); !errors.Is(err, smsrelay.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	first, err := s.GetMessage(ctx(), m.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.GetMessage(ctx(), m.ID)

	first.Attempt(a.ID).State = attempt.Success
	if err := s.UpdateMessage(ctx(), first); err != nil {
		t.Fatal(err)
	}
	if first.Version != 2 {
		t.Fatalf("version = %d, want 2", first.Version)
	}

	second.Attempt(a.ID).State = attempt.Failed
	if err := s.UpdateMessage(ctx(), second); !errors.Is(err, smsrelay.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := s.GetMessage(ctx(), m.ID)
	if got.Attempt(a.ID).State != attempt.Success {
		t.Fatalf("state = %s, want SUCCESS", got.Attempt(a.ID).State)
	}
}

func TestGetMessageReturnsCopy(t *testing.T) {
	s := New()
	m, a := newMessage(t, id.NewUserID(), base)
	_ = s.CreateMessage(ctx(), m)

	got, _ := s.GetMessage(ctx(), m.ID)
	got.Attempt(a.ID).State = attempt.Failed

	again, _ := s.GetMessage(ctx(), m.ID)
	if again.Attempt(a.ID).State != attempt.Pending {
		t.Fatal("mutating a returned message changed the store")
	}

	if _, err := s.GetMessage(ctx(), id.NewMessageID()); !errors.Is(err, smsrelay.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestFindByAttemptIDs(t *testing.T) {
	s := New()
	donor := id.NewUserID()
	mine, a := newMessage(t, donor, base)
	other, b := newMessage(t, id.NewUserID(), base)
	_ = s.CreateMessage(ctx(), mine)
	_ = s.CreateMessage(ctx(), other)

	got, err := s.FindByAttemptIDs(ctx(), []id.ID{a.ID, b.ID}, donor)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("FindByAttemptIDs = %v", got)
	}
}

func TestFindWithPendingAttempts(t *testing.T) {
	s := New()
	old, _ := newMessage(t, id.NewUserID(), base)
	fresh, _ := newMessage(t, id.NewUserID(), base.Add(time.Hour))
	unassigned, _ := newMessage(t, id.Nil, base.Add(time.Hour))
	for _, m := range []*message.Message{fresh, unassigned, old} {
		_ = s.CreateMessage(ctx(), m)
	}

	got, _ := s.FindWithPendingAttempts(ctx(), message.PendingFilter{CreatedBefore: base.Add(time.Minute)})
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatalf("without unassigned = %v", got)
	}

	got, _ = s.FindWithPendingAttempts(ctx(), message.PendingFilter{CreatedBefore: base.Add(time.Minute), IncludeUnassigned: true})
	if len(got) != 2 || got[0].ID != old.ID {
		t.Fatalf("with unassigned = %v", got)
	}

	got, _ = s.FindWithPendingAttempts(ctx(), message.PendingFilter{CreatedBefore: base.Add(2 * time.Hour), Limit: 1})
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatalf("with limit = %v", got)
	}
}

func TestListPendingForDonor(t *testing.T) {
	s := New()
	donor := id.NewUserID()
	m, a := newMessage(t, donor, base)
	_ = s.CreateMessage(ctx(), m)

	got, _ := s.ListPendingForDonor(ctx(), donor)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}

	got[0].Attempt(a.ID).State = attempt.Success
	_ = s.UpdateMessage(ctx(), got[0])

	got, _ = s.ListPendingForDonor(ctx(), donor)
	if len(got) != 0 {
		t.Fatalf("expected no messages after success, got %d", len(got))
	}
}

// ──────────────────────────────────────────────────
// org.Store
// ──────────────────────────────────────────────────

func TestOrganisationResolvesUsers(t *testing.T) {
	s := New()
	u := &org.User{ID: id.NewUserID(), PhoneNumber: "+1", PushToken: "tok"}
	if err := s.CreateUser(ctx(), u); err != nil {
		t.Fatal(err)
	}

	o := &org.Organisation{
		ID:   id.NewOrganisationID(),
		Name: "Allotments",
		Members: []*org.Member{
			{ID: id.NewMemberID(), Role: org.RoleDonor, UserID: u.ID},
			{ID: id.NewMemberID(), Role: org.RoleSubscriber, UserID: id.NewUserID()},
		},
	}
	if err := s.CreateOrganisation(ctx(), o); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOrganisation(ctx(), o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Members[0].User == nil || got.Members[0].User.PushToken != "tok" {
		t.Fatalf("member user not resolved: %+v", got.Members[0])
	}
	if got.Members[1].User != nil {
		t.Fatal("unknown user should stay unresolved")
	}

	if _, err := s.GetOrganisation(ctx(), id.NewOrganisationID()); !errors.Is(err, smsrelay.ErrOrganisationNotFound) {
		t.Fatalf("expected ErrOrganisationNotFound, got %v", err)
	}
	if _, err := s.GetUser(ctx(), id.NewUserID()); !errors.Is(err, smsrelay.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
