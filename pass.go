package smsrelay

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/dispatch"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/message"
	"github.com/xraph/smsrelay/org"
	"github.com/xraph/smsrelay/realloc"
)

// Pass triggers.
const (
	TriggerReport  = "report"
	TriggerTimeout = "timeout"
)

// AttemptUpdate is a donor's report on one attempt.
type AttemptUpdate struct {
	AttemptID id.ID
	State     attempt.State
}

// ValidateUpdates checks every update and reports all offending entries
// together as a *ValidationError wrapping ErrInvalidUpdates.
func ValidateUpdates(updates []AttemptUpdate) error {
	verr := &ValidationError{Err: ErrInvalidUpdates}
	if len(updates) == 0 {
		verr.Add(-1, "updates", "must not be empty")
	}
	for i, u := range updates {
		if u.AttemptID.IsNil() || u.AttemptID.Prefix() != id.PrefixAttempt {
			verr.Add(i, "attempt", "must be an attempt id")
		}
		if !u.State.IsReportable() {
			verr.Add(i, "newState", fmt.Sprintf("%q cannot be reported", u.State))
		}
	}
	return verr.OrNil()
}

// PassReport summarises one processing pass.
type PassReport struct {
	Trigger string `json:"trigger"`

	// Messages is the number of messages loaded.
	Messages int `json:"messages"`

	// Transitions counts attempts moved out of PENDING by this pass.
	Transitions int `json:"transitions"`

	Reallocated int `json:"reallocated"`
	Carrier     int `json:"carrier"`
	NoSenders   int `json:"noSenders"`
	Skipped     int `json:"skipped"`

	PushFailed    int `json:"pushFailed"`
	CarrierFailed int `json:"carrierFailed"`

	Saved        int `json:"saved"`
	SaveFailures int `json:"saveFailures"`
}

type transition struct {
	attemptID id.ID
	to        attempt.State
}

// work is one message touched by a pass.
type work struct {
	msg         *message.Message
	journal     message.Journal
	transitions []transition
}

// ReportAttempts applies a donor's reports. Updates are validated first and
// every invalid entry is reported together. Entries for attempts that do not
// exist, are not assigned to actor or are no longer pending are dropped
// without error. Attempts entering the retry set are reallocated.
func (r *Relay) ReportAttempts(ctx context.Context, actor id.ID, updates []AttemptUpdate) (*PassReport, error) {
	if actor.IsNil() {
		return nil, ErrUnauthenticated
	}
	if err := ValidateUpdates(updates); err != nil {
		return nil, err
	}

	ids := make([]id.ID, len(updates))
	for i, u := range updates {
		ids[i] = u.AttemptID
	}

	msgs, err := r.store.FindByAttemptIDs(ctx, ids, actor)
	if err != nil {
		return nil, fmt.Errorf("smsrelay: load messages: %w", err)
	}

	var items []*work
	for _, m := range msgs {
		w := &work{msg: m}
		for _, u := range updates {
			a := m.Attempt(u.AttemptID)
			if a == nil || a.Donor != actor {
				continue
			}
			w.transitions = append(w.transitions, transition{attemptID: a.ID, to: u.State})
		}
		if len(w.transitions) > 0 {
			items = append(items, w)
		}
	}

	return r.runPass(ctx, TriggerReport, items)
}

// ProcessTimeouts marks attempts pending longer than the configured timeout
// as NO_RESPONSE and reallocates them. Unassigned attempts are included
// regardless of age. Running it again over settled attempts changes nothing.
func (r *Relay) ProcessTimeouts(ctx context.Context) (*PassReport, error) {
	deadline := r.now().UTC().Add(-r.config.TimeoutAfter)

	msgs, err := r.store.FindWithPendingAttempts(ctx, message.PendingFilter{
		CreatedBefore:     deadline,
		IncludeUnassigned: true,
		Limit:             r.config.SweepBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("smsrelay: find pending: %w", err)
	}

	var items []*work
	stale := 0
	for _, m := range msgs {
		w := &work{msg: m}
		for _, a := range m.Stale(deadline, true) {
			w.transitions = append(w.transitions, transition{attemptID: a.ID, to: attempt.NoResponse})
		}
		if len(w.transitions) > 0 {
			stale += len(w.transitions)
			items = append(items, w)
		}
	}
	if r.metrics != nil {
		r.metrics.StaleAttempts.Set(float64(stale))
	}

	return r.runPass(ctx, TriggerTimeout, items)
}

// runPass processes every transition, dispatches the resulting sends and
// saves each touched message once.
func (r *Relay) runPass(ctx context.Context, trigger string, items []*work) (report *PassReport, err error) {
	report = &PassReport{Trigger: trigger, Messages: len(items)}
	if r.metrics != nil {
		r.metrics.RecordPass(trigger)
	}

	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.StartPassSpan(ctx, trigger, len(items))
		defer func() {
			r.tracer.EndPassSpan(span, report.Reallocated, report.Carrier, report.NoSenders, err)
		}()
	}

	now := r.now().UTC()
	orgs := make(map[id.ID]*org.Organisation)
	pushTo := id.NewSet()
	var carrierJobs []dispatch.CarrierJob

	// 1. Apply transitions and run the reallocation engine.
	for _, w := range items {
		for _, t := range w.transitions {
			a := w.msg.Attempt(t.attemptID)
			if a == nil || a.State != attempt.Pending {
				continue
			}

			// A retry-set transition needs the organisation. Without it the
			// attempt stays PENDING so a later sweep picks it up again.
			var o *org.Organisation
			if t.to.IsRetryable() {
				var ok bool
				if o, ok = r.organisation(ctx, orgs, w.msg.OrganisationID); !ok {
					report.Skipped++
					continue
				}
			}

			if err := w.journal.SetState(w.msg, a, t.to, now); err != nil {
				r.logger.WarnContext(ctx, "attempt transition rejected",
					"message_id", w.msg.ID, "attempt_id", a.ID, "error", err)
				continue
			}
			report.Transitions++

			if !a.State.IsRetryable() {
				continue
			}

			out := r.engine.ProcessAttempt(&w.journal, w.msg, a, o, now)
			r.recordOutcome(report, out)

			switch out.Kind {
			case realloc.Reallocated:
				pushTo.Add(out.NewDonor)
			case realloc.Twilio:
				carrierJobs = append(carrierJobs, dispatch.CarrierJob{
					MessageID: w.msg.ID,
					Attempt:   a.Clone(),
					Content:   w.msg.Content,
				})
			}

			r.logger.DebugContext(ctx, "attempt processed",
				"message_id", w.msg.ID,
				"attempt_id", a.ID,
				"state", a.State,
				"outcome", out.Kind.String(),
				"donor_id", out.NewDonor,
			)
		}
	}

	// 2. Persist TWILIO claims before any SMS goes out. A message whose
	// claim cannot be saved sends nothing and is retried by a later sweep.
	byMessage := make(map[id.ID]*work, len(items))
	for _, w := range items {
		byMessage[w.msg.ID] = w
	}
	var saveErrs []error
	saved := id.NewSet()
	unsaved := id.NewSet()
	saveOnce := func(w *work) {
		if err := r.save(ctx, w); err != nil {
			report.SaveFailures++
			unsaved.Add(w.msg.ID)
			saveErrs = append(saveErrs, fmt.Errorf("message %s: %w", w.msg.ID, err))
			r.logger.ErrorContext(ctx, "save message failed", "message_id", w.msg.ID, "error", err)
			return
		}
		w.journal = message.Journal{}
		saved.Add(w.msg.ID)
	}

	if len(carrierJobs) > 0 {
		claimed := carrierJobs[:0]
		for _, job := range carrierJobs {
			w := byMessage[job.MessageID]
			if !saved.Has(w.msg.ID) && !unsaved.Has(w.msg.ID) {
				saveOnce(w)
			}
			if unsaved.Has(w.msg.ID) {
				continue
			}
			// The claim may have been superseded by a concurrent writer.
			if a := w.msg.Attempt(job.Attempt.ID); a == nil || a.State != attempt.Twilio {
				continue
			}
			claimed = append(claimed, job)
		}
		carrierJobs = claimed
	}

	// 3. Dispatch pushes and carrier fallbacks.
	if pushTo.Len() > 0 {
		report.PushFailed = len(dispatch.Failed(r.batcher.SendPushNotifications(ctx, pushTo.Slice())))
	}
	if len(carrierJobs) > 0 {
		for _, res := range dispatch.Failed(r.batcher.SendCarrierMessages(ctx, carrierJobs)) {
			report.CarrierFailed++
			w := byMessage[res.MessageID]
			if w == nil {
				continue
			}
			if a := w.msg.Attempt(res.AttemptID); a != nil {
				if err := w.journal.SetState(w.msg, a, attempt.NoSenders, now); err != nil {
					r.logger.WarnContext(ctx, "carrier failure not recorded",
						"message_id", w.msg.ID, "attempt_id", a.ID, "error", err)
				}
			}
		}
	}

	// 4. Save the remaining changes of each touched message.
	for _, w := range items {
		if w.journal.Len() == 0 || unsaved.Has(w.msg.ID) {
			continue
		}
		saveOnce(w)
	}
	report.Saved = saved.Len()

	if len(saveErrs) > 0 {
		return report, fmt.Errorf("smsrelay: %s pass: %w", trigger, errors.Join(saveErrs...))
	}
	return report, nil
}

// save writes w.msg, reloading and replaying the journal on version
// conflicts. On success w.msg holds the stored copy.
func (r *Relay) save(ctx context.Context, w *work) error {
	m := w.msg
	for i := 0; ; i++ {
		err := r.store.UpdateMessage(ctx, m)
		if err == nil {
			w.msg = m
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) || i >= r.config.SaveRetries {
			return err
		}
		if r.metrics != nil {
			r.metrics.SaveConflicts.Inc()
		}

		fresh, err := r.store.GetMessage(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("reload: %w", err)
		}

		applied, dropped := w.journal.Replay(fresh)
		for _, c := range dropped {
			r.logger.WarnContext(ctx, "change superseded by concurrent update",
				"message_id", m.ID, "attempt_id", c.AttemptID, "to", c.To)
		}
		if applied == 0 {
			w.msg = fresh
			return nil
		}
		m = fresh
	}
}

// organisation resolves orgID once per pass. A missing or unreadable
// organisation is logged and reported as unavailable for the rest of the pass.
func (r *Relay) organisation(ctx context.Context, cache map[id.ID]*org.Organisation, orgID id.ID) (*org.Organisation, bool) {
	if o, ok := cache[orgID]; ok {
		return o, o != nil
	}

	o, err := r.store.GetOrganisation(ctx, orgID)
	if err != nil {
		r.logger.WarnContext(ctx, "organisation unavailable, attempt left pending",
			"organisation_id", orgID, "error", err)
		cache[orgID] = nil
		return nil, false
	}
	cache[orgID] = o
	return o, true
}

func (r *Relay) recordOutcome(report *PassReport, out realloc.Outcome) {
	switch out.Kind {
	case realloc.Reallocated:
		report.Reallocated++
	case realloc.Twilio:
		report.Carrier++
	case realloc.NoSenders:
		report.NoSenders++
	default:
		report.Skipped++
	}
	if r.metrics != nil {
		r.metrics.RecordOutcome(out.Kind.String())
	}
}
