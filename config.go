package smsrelay

import (
	"time"

	"github.com/xraph/smsrelay/realloc"
)

// Config holds the configuration for a Relay instance.
type Config struct {
	// TimeoutAfter is how long a donor may leave an attempt pending before
	// the sweep marks it NO_RESPONSE.
	TimeoutAfter time.Duration

	// SweepInterval is how often the scheduler looks for timed-out attempts.
	SweepInterval time.Duration

	// SweepBatchSize caps the messages loaded per sweep. 0 means no cap.
	SweepBatchSize int

	// MaxContentLength is the exclusive upper bound on message length, in runes.
	MaxContentLength int

	// Concurrency bounds concurrent gateway sends per batch.
	Concurrency int

	// SendTimeout bounds each gateway send.
	SendTimeout time.Duration

	// CarrierRate caps carrier SMS per second. 0 means unlimited.
	CarrierRate int

	// SaveRetries is how many times a conflicting message save is reloaded
	// and replayed before the pass gives up on it.
	SaveRetries int

	// Fallback controls when an exhausted attempt escalates to the carrier.
	Fallback realloc.FallbackPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutAfter:     15 * time.Minute,
		SweepInterval:    1 * time.Minute,
		SweepBatchSize:   200,
		MaxContentLength: 140,
		Concurrency:      10,
		SendTimeout:      10 * time.Second,
		CarrierRate:      10,
		SaveRetries:      3,
		Fallback:         realloc.FallbackChainRoot,
	}
}
