package smsrelay

import (
	"log/slog"
	"time"

	"github.com/xraph/smsrelay/dispatch"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/realloc"
	"github.com/xraph/smsrelay/scheduler"
	"github.com/xraph/smsrelay/store"
)

// Relay is the root donor relay engine.
type Relay struct {
	config    Config
	store     store.Store
	push      dispatch.PushGateway
	carrier   dispatch.CarrierGateway
	localiser dispatch.Localiser
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger
	now       func() time.Time

	engine    *realloc.Engine
	batcher   *dispatch.Batcher
	scheduler *scheduler.Scheduler
}

// Option configures a Relay instance.
type Option func(*Relay) error

// New creates a new Relay with the given options.
func New(opts ...Option) (*Relay, error) {
	r := &Relay{
		config: DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	if err := r.wireServices(); err != nil {
		return nil, err
	}
	return r, nil
}

// WithStore sets the persistence backend for the Relay instance.
func WithStore(s store.Store) Option {
	return func(r *Relay) error {
		r.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Relay instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithPushGateway sets the gateway used to notify donors.
func WithPushGateway(g dispatch.PushGateway) Option {
	return func(r *Relay) error {
		r.push = g
		return nil
	}
}

// WithCarrierGateway sets the gateway used for carrier fallback.
func WithCarrierGateway(g dispatch.CarrierGateway) Option {
	return func(r *Relay) error {
		r.carrier = g
		return nil
	}
}

// WithLocaliser sets the localiser for push and SMS text.
func WithLocaliser(l dispatch.Localiser) Option {
	return func(r *Relay) error {
		r.localiser = l
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Relay) error {
		r.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Relay) error {
		r.tracer = t
		return nil
	}
}

// WithTimeoutAfter sets how long an attempt may stay pending.
func WithTimeoutAfter(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.TimeoutAfter = d
		return nil
	}
}

// WithSweepInterval sets how often the scheduler sweeps for timeouts.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.SweepInterval = d
		return nil
	}
}

// WithSweepBatchSize caps the messages loaded per sweep.
func WithSweepBatchSize(n int) Option {
	return func(r *Relay) error {
		r.config.SweepBatchSize = n
		return nil
	}
}

// WithMaxContentLength sets the exclusive upper bound on message length.
func WithMaxContentLength(n int) Option {
	return func(r *Relay) error {
		r.config.MaxContentLength = n
		return nil
	}
}

// WithConcurrency bounds concurrent gateway sends per batch.
func WithConcurrency(n int) Option {
	return func(r *Relay) error {
		r.config.Concurrency = n
		return nil
	}
}

// WithSendTimeout bounds each gateway send.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.SendTimeout = d
		return nil
	}
}

// WithCarrierRate caps carrier SMS per second.
func WithCarrierRate(perSecond int) Option {
	return func(r *Relay) error {
		r.config.CarrierRate = perSecond
		return nil
	}
}

// WithSaveRetries sets how many conflicting saves are replayed.
func WithSaveRetries(n int) Option {
	return func(r *Relay) error {
		r.config.SaveRetries = n
		return nil
	}
}

// WithFallbackPolicy sets when exhausted attempts use the carrier.
func WithFallbackPolicy(p realloc.FallbackPolicy) Option {
	return func(r *Relay) error {
		r.config.Fallback = p
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) error {
		r.now = now
		return nil
	}
}
