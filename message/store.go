package message

import (
	"context"
	"time"

	"github.com/xraph/smsrelay/id"
)

// PendingFilter selects messages with stale pending attempts.
type PendingFilter struct {
	// CreatedBefore matches messages holding a pending attempt created before this instant.
	CreatedBefore time.Time

	// IncludeUnassigned also matches pending attempts that have no donor,
	// whatever their age.
	IncludeUnassigned bool

	// Limit caps the number of messages returned. Zero means no limit.
	Limit int
}

// Store defines the persistence contract for messages and their attempts.
type Store interface {
	// CreateMessage persists a new message with its initial attempts.
	CreateMessage(ctx context.Context, m *Message) error

	// GetMessage returns a message by ID.
	GetMessage(ctx context.Context, msgID id.ID) (*Message, error)

	// UpdateMessage saves m if its stored version still equals m.Version,
	// then increments m.Version. A stale version yields ErrVersionConflict.
	UpdateMessage(ctx context.Context, m *Message) error

	// FindByAttemptIDs returns messages holding a pending attempt whose ID is
	// in attemptIDs and whose donor is donor.
	FindByAttemptIDs(ctx context.Context, attemptIDs []id.ID, donor id.ID) ([]*Message, error)

	// FindWithPendingAttempts returns messages holding a pending attempt
	// matching the filter, oldest first.
	FindWithPendingAttempts(ctx context.Context, f PendingFilter) ([]*Message, error)

	// ListPendingForDonor returns messages holding a pending attempt for donor.
	ListPendingForDonor(ctx context.Context, donor id.ID) ([]*Message, error)
}
