package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/ratelimit"
)

const (
	channelPush    = "push"
	channelCarrier = "carrier"

	carrierLimiterKey = "carrier"
)

// Config holds batcher configuration.
type Config struct {
	// Concurrency bounds the number of units in flight per batch.
	Concurrency int

	// SendTimeout bounds each unit.
	SendTimeout time.Duration

	// CarrierRate caps carrier sends per second. 0 means unlimited.
	CarrierRate int

	Push      PushGateway
	Carrier   CarrierGateway
	Localiser Localiser
	Limiter   *ratelimit.Limiter
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// Batcher fans gateway sends out concurrently.
type Batcher struct {
	users  UserLookup
	config Config
	logger *slog.Logger
}

// NewBatcher creates a batcher that resolves users through users.
func NewBatcher(users UserLookup, cfg Config, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New()
	}
	return &Batcher{users: users, config: cfg, logger: logger}
}

// SendPushNotifications tells each donor that new jobs are waiting.
// Failures are logged and reported but never returned as a batch error.
func (b *Batcher) SendPushNotifications(ctx context.Context, donors []id.ID) []Result {
	results := make([]Result, len(donors))

	b.run(ctx, len(donors), func(ctx context.Context, i int) {
		donor := donors[i]
		err := b.sendPush(ctx, donor)
		results[i] = Result{Target: donor, Err: err}
		if err != nil {
			b.logger.WarnContext(ctx, "push notification failed", "donor_id", donor, "error", err)
		}
	})

	return results
}

// SendCarrierMessages sends each job's content to its recipient by SMS.
// The caller is expected to mark failed jobs as exhausted.
func (b *Batcher) SendCarrierMessages(ctx context.Context, jobs []CarrierJob) []Result {
	results := make([]Result, len(jobs))

	b.run(ctx, len(jobs), func(ctx context.Context, i int) {
		job := jobs[i]
		err := b.sendCarrier(ctx, job)
		results[i] = Result{Target: job.Attempt.Recipient, AttemptID: job.Attempt.ID, MessageID: job.MessageID, Err: err}
		if err != nil {
			b.logger.ErrorContext(ctx, "carrier send failed",
				"message_id", job.MessageID, "attempt_id", job.Attempt.ID, "error", err)
		}
	})

	return results
}

// run executes fn for every index with bounded concurrency. Units never
// return an error to the group, so one failure cannot cancel the others.
func (b *Batcher) run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(b.config.Concurrency)

	for i := range n {
		g.Go(func() error {
			unitCtx, cancel := context.WithTimeout(ctx, b.config.SendTimeout)
			defer cancel()
			fn(unitCtx, i)
			return nil
		})
	}

	_ = g.Wait()
}

func (b *Batcher) sendPush(ctx context.Context, donor id.ID) (err error) {
	ctx, finish := b.observe(ctx, channelPush, donor)
	defer func() { finish(err) }()

	if b.config.Push == nil {
		return ErrGatewayUnavailable
	}

	u, err := b.users.GetUser(ctx, donor)
	if err != nil {
		return fmt.Errorf("lookup donor: %w", err)
	}
	if u.PushToken == "" {
		return ErrNoPushToken
	}

	n := Notification{
		Title: b.localise(u.Locale, KeyNewDonationTitle),
		Body:  b.localise(u.Locale, KeyNewDonationBody),
		Data:  map[string]string{"type": "new_donation"},
	}
	return b.config.Push.SendPush(ctx, u.PushToken, n)
}

func (b *Batcher) sendCarrier(ctx context.Context, job CarrierJob) (err error) {
	ctx, finish := b.observe(ctx, channelCarrier, job.Attempt.Recipient)
	defer func() { finish(err) }()

	if b.config.Carrier == nil {
		return ErrGatewayUnavailable
	}

	u, err := b.users.GetUser(ctx, job.Attempt.Recipient)
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	if u.PhoneNumber == "" {
		return ErrNoPhoneNumber
	}

	if err := b.config.Limiter.Wait(ctx, carrierLimiterKey, b.config.CarrierRate); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body := job.Content
	if footer := b.localise(u.Locale, KeySMSFooter); footer != "" {
		body += "\n\n" + footer
	}
	return b.config.Carrier.SendSMS(ctx, u.PhoneNumber, body)
}

func (b *Batcher) localise(locale, key string) string {
	if b.config.Localiser == nil {
		return ""
	}
	return b.config.Localiser.Localise(locale, key)
}

// observe starts a span and returns a func recording metrics and ending it.
func (b *Batcher) observe(ctx context.Context, channel string, target id.ID) (context.Context, func(error)) {
	start := time.Now()

	var end func(latencyMs int, err error)
	if b.config.Tracer != nil {
		var span trace.Span
		ctx, span = b.config.Tracer.StartSendSpan(ctx, channel, target.String())
		end = func(latencyMs int, err error) { b.config.Tracer.EndSendSpan(span, latencyMs, err) }
	}

	return ctx, func(err error) {
		latency := time.Since(start)
		if b.config.Metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			b.config.Metrics.RecordSend(channel, status, latency.Seconds())
		}
		if end != nil {
			end(int(latency.Milliseconds()), err)
		}
	}
}
