package smsrelay

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by smsrelay operations.
var (
	// ErrNoStore is returned when a Relay is created without a store.
	ErrNoStore = errors.New("smsrelay: store is required")

	// ErrInvalidUpdates is returned when a batch of attempt updates contains invalid entries.
	ErrInvalidUpdates = errors.New("smsrelay: invalid attempt updates")

	// ErrInvalidContent is returned when a new message fails validation.
	ErrInvalidContent = errors.New("smsrelay: invalid message")

	// ErrOrganisationNotFound is returned when an organisation cannot be found
	// or the caller may not act on it.
	ErrOrganisationNotFound = errors.New("smsrelay: organisation not found")

	// ErrMessageNotFound is returned when a message cannot be found.
	ErrMessageNotFound = errors.New("smsrelay: message not found")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("smsrelay: user not found")

	// ErrAlreadyExists is returned when creating a record whose ID is taken.
	ErrAlreadyExists = errors.New("smsrelay: already exists")

	// ErrVersionConflict is returned when a message was modified since it was loaded.
	ErrVersionConflict = errors.New("smsrelay: version conflict")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("smsrelay: store is closed")

	// ErrUnauthenticated is returned when an operation requires an actor and none was given.
	ErrUnauthenticated = errors.New("smsrelay: unauthenticated")
)

// Problem describes one invalid input.
type Problem struct {
	// Index is the position of the offending entry, or -1 for a top-level field.
	Index int `json:"index"`

	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every problem found in one request.
type ValidationError struct {
	// Err is the sentinel the error matches with errors.Is.
	Err      error
	Problems []Problem
}

// Add records a problem.
func (e *ValidationError) Add(index int, field, reason string) {
	e.Problems = append(e.Problems, Problem{Index: index, Field: field, Reason: reason})
}

// OrNil returns e when it holds problems and nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Index >= 0 {
			parts = append(parts, fmt.Sprintf("[%d].%s: %s", p.Index, p.Field, p.Reason))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Reason))
		}
	}
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }
