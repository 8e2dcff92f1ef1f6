package smsrelay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xraph/smsrelay/allocate"
	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/dispatch"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/ratelimit"
	"github.com/xraph/smsrelay/realloc"
	"github.com/xraph/smsrelay/scheduler"
	"github.com/xraph/smsrelay/store"
)

// wireServices initializes the internal services after options have been applied.
func (r *Relay) wireServices() error {
	r.engine = realloc.NewEngine(r.config.Fallback)

	r.batcher = dispatch.NewBatcher(r.store, dispatch.Config{
		Concurrency: r.config.Concurrency,
		SendTimeout: r.config.SendTimeout,
		CarrierRate: r.config.CarrierRate,
		Push:        r.push,
		Carrier:     r.carrier,
		Localiser:   r.localiser,
		Limiter:     ratelimit.New(),
		Metrics:     r.metrics,
		Tracer:      r.tracer,
	}, r.logger)

	sched, err := scheduler.New(r.config.SweepInterval, r.sweep, r.logger)
	if err != nil {
		return err
	}
	r.scheduler = sched
	return nil
}

// Start begins the timeout sweep. The first sweep runs immediately.
func (r *Relay) Start(_ context.Context) {
	r.scheduler.Start()
}

// Stop ends the timeout sweep, waiting for a sweep in progress to finish.
func (r *Relay) Stop(_ context.Context) {
	r.scheduler.Stop()
}

// Running reports whether the timeout sweep is active.
func (r *Relay) Running() bool {
	return r.scheduler.IsRunning()
}

// Store returns the underlying store.
func (r *Relay) Store() store.Store {
	return r.store
}

func (r *Relay) sweep(ctx context.Context) {
	report, err := r.ProcessTimeouts(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "timeout sweep failed", "error", err)
		return
	}
	if report.Transitions > 0 {
		r.logger.InfoContext(ctx, "timeout sweep completed",
			"messages", report.Messages,
			"timed_out", report.Transitions,
			"reallocated", report.Reallocated,
			"carrier", report.Carrier,
			"no_senders", report.NoSenders,
		)
	}
}

// CreateMessage validates content, fans it out to the organisation's active
// subscribers and notifies the donors that received jobs.
//
// The critical path:
//  1. Validate content and organisation (all problems reported together).
//  2. Load the organisation; the author must be an active coordinator.
//  3. Allocate each active subscriber an eligible donor round-robin.
//  4. Persist the message with one pending attempt per subscriber.
//  5. Push a notification to every donor that received a job.
//
// Subscribers left without a donor get an unassigned attempt, which the next
// sweep escalates without waiting for the timeout.
func (r *Relay) CreateMessage(ctx context.Context, orgID, authorID id.ID, content string) (*message.Message, error) {
	verr := &ValidationError{Err: ErrInvalidContent}
	if n := utf8.RuneCountInString(strings.TrimSpace(content)); n == 0 {
		verr.Add(-1, "content", "must not be empty")
	} else if utf8.RuneCountInString(content) >= r.config.MaxContentLength {
		verr.Add(-1, "content", fmt.Sprintf("must be shorter than %d characters", r.config.MaxContentLength))
	}
	if orgID.IsNil() || orgID.Prefix() != id.PrefixOrganisation {
		verr.Add(-1, "orgId", "must be an organisation id")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if authorID.IsNil() {
		return nil, ErrUnauthenticated
	}

	now := r.now().UTC()

	o, err := r.store.GetOrganisation(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrOrganisationNotFound) {
			return nil, ErrOrganisationNotFound
		}
		return nil, fmt.Errorf("smsrelay: load organisation: %w", err)
	}
	if !o.IsCoordinator(authorID, now) {
		return nil, ErrOrganisationNotFound
	}

	subscribers := o.Subscribers(now)
	alloc := allocate.RoundRobin(subscribers, o.Donors(now))

	m := message.New(o.ID, authorID, content, now)
	for _, sub := range subscribers {
		donor, _ := alloc.Donor(sub)
		if err := m.Append(attempt.New(sub, donor, id.Nil, now)); err != nil {
			return nil, fmt.Errorf("smsrelay: build attempts: %w", err)
		}
	}

	if err := r.store.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("smsrelay: persist message: %w", err)
	}

	donors := alloc.Donors()
	if len(donors) > 0 {
		results := r.batcher.SendPushNotifications(ctx, donors)
		r.logger.DebugContext(ctx, "donors notified",
			"message_id", m.ID, "donors", len(donors), "failed", len(dispatch.Failed(results)))
	}

	r.logger.InfoContext(ctx, "message created",
		"message_id", m.ID,
		"organisation_id", o.ID,
		"attempts", len(m.Attempts),
		"donors", len(donors),
	)

	return m, nil
}

// Job is a pending attempt as seen by the donor who must send it.
type Job struct {
	MessageID   id.ID     `json:"message"`
	AttemptID   id.ID     `json:"attempt"`
	Content     string    `json:"content"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PendingAttempts returns the jobs donor still has to send, oldest first.
func (r *Relay) PendingAttempts(ctx context.Context, donor id.ID) ([]Job, error) {
	if donor.IsNil() {
		return nil, ErrUnauthenticated
	}

	msgs, err := r.store.ListPendingForDonor(ctx, donor)
	if err != nil {
		return nil, fmt.Errorf("smsrelay: list pending: %w", err)
	}

	phones := make(map[id.ID]string)
	var jobs []Job
	for _, m := range msgs {
		for _, a := range m.PendingFor(donor) {
			phone, ok := phones[a.Recipient]
			if !ok {
				u, err := r.store.GetUser(ctx, a.Recipient)
				if err != nil {
					r.logger.WarnContext(ctx, "recipient lookup failed",
						"attempt_id", a.ID, "recipient_id", a.Recipient, "error", err)
					continue
				}
				phone = u.PhoneNumber
				phones[a.Recipient] = phone
			}
			jobs = append(jobs, Job{
				MessageID:   m.ID,
				AttemptID:   a.ID,
				Content:     m.Content,
				PhoneNumber: phone,
				CreatedAt:   a.CreatedAt,
			})
		}
	}
	return jobs, nil
}
