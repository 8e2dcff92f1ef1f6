package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
)

func TestMessageModelKeepsChain(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recipient := id.NewUserID()

	m := message.New(id.NewOrganisationID(), id.NewUserID(), "hello", now)
	root := attempt.New(recipient, id.Nil, id.Nil, now)
	root.State = attempt.NoResponse
	next := attempt.New(recipient, id.NewUserID(), root.ID, now)
	m.Attempts = append(m.Attempts, root, next)
	m.Version = 4
	m.Touch(now.Add(5 * time.Minute))

	mm := toMessageModel(m)
	if mm.Attempts[0].Donor != "" || mm.Attempts[0].PreviousAttempt != "" {
		t.Fatalf("unassigned root should store empty references: %+v", mm.Attempts[0])
	}

	got, err := fromMessageModel(mm)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 4 {
		t.Fatalf("version = %d", got.Version)
	}
	if !got.UpdatedAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("updated_at = %s", got.UpdatedAt)
	}
	if !got.Attempts[0].Donor.IsNil() {
		t.Fatal("root donor should be nil")
	}
	if got.Attempts[1].PreviousAttempt != root.ID {
		t.Fatal("chain link lost")
	}
	if got.Attempts[0].State != attempt.NoResponse {
		t.Fatalf("state = %s", got.Attempts[0].State)
	}
}

func TestFromMessageModelRejectsBadState(t *testing.T) {
	mm := &messageModel{
		ID:           id.NewMessageID().String(),
		Organisation: id.NewOrganisationID().String(),
		Attempts:     []attemptModel{{ID: id.NewAttemptID().String(), State: "LOST"}},
	}
	if _, err := fromMessageModel(mm); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestPendingFilter(t *testing.T) {
	before := time.Now()

	f := pendingFilter(message.PendingFilter{CreatedBefore: before})
	if _, ok := f["$or"]; ok {
		t.Fatal("filter without unassigned should not use $or")
	}

	f = pendingFilter(message.PendingFilter{CreatedBefore: before, IncludeUnassigned: true})
	or, ok := f["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected $or with 2 branches, got %v", f)
	}
}
