// Package store defines the composite Store interface for all smsrelay persistence.
//
// Each domain package defines its own store interface and the aggregate Store
// composes them. Backends live in the memory, mongo and redis subpackages.
package store

import (
	"context"

	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
)

// Store is the aggregate persistence interface.
type Store interface {
	message.Store
	org.Store

	// Migrate creates indexes or schema the backend needs.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
