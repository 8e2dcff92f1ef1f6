package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
)

// Request and response types.

type createMessageRequest struct {
	OrgID   string `json:"orgId"`
	Content string `json:"content"`
}

type attemptUpdateRequest struct {
	Attempt  string `json:"attempt"`
	NewState string `json:"newState"`
}

type reportAttemptsRequest struct {
	Updates []attemptUpdateRequest `json:"updates"`
}

type reportAttemptsResponse struct {
	Data      string `json:"data"`
	Processed int    `json:"processed"`
}

type listAttemptsResponse struct {
	Data []smsrelay.Job `json:"data"`
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.Authenticate(r)
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	var req createMessageRequest
	if err := h.decode(r, createMessageShape, smsrelay.ErrInvalidContent, &req); err != nil {
		h.mapError(w, r, err)
		return
	}

	// An unparsable ID is reported by the relay alongside content problems.
	orgID, _ := id.ParseOrganisationID(req.OrgID)

	m, err := h.relay.CreateMessage(r.Context(), orgID, actor, req.Content)
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.Authenticate(r)
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	jobs, err := h.relay.PendingAttempts(r.Context(), actor)
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []smsrelay.Job{}
	}

	writeJSON(w, http.StatusOK, listAttemptsResponse{Data: jobs})
}

func (h *Handler) reportAttempts(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.Authenticate(r)
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	var req reportAttemptsRequest
	if err := h.decode(r, reportAttemptsShape, smsrelay.ErrInvalidUpdates, &req); err != nil {
		h.mapError(w, r, err)
		return
	}

	// Entries that fail to parse keep a zero ID or an unknown state so the
	// relay reports them with their index.
	updates := make([]smsrelay.AttemptUpdate, len(req.Updates))
	for i, u := range req.Updates {
		attemptID, _ := id.ParseAttemptID(u.Attempt)
		updates[i] = smsrelay.AttemptUpdate{
			AttemptID: attemptID,
			State:     attempt.State(u.NewState),
		}
	}

	report, err := h.relay.ReportAttempts(r.Context(), actor, updates)
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reportAttemptsResponse{Data: "ok", Processed: report.Transitions})
}

// decode reads the body, checks it against shape and unmarshals it into v.
// Shape mismatches are returned as a *smsrelay.ValidationError wrapping sentinel.
func (h *Handler) decode(r *http.Request, shape *jsonschema.Schema, sentinel error, v any) error {
	defer r.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("api: read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		verr := &smsrelay.ValidationError{Err: sentinel}
		verr.Add(-1, "body", "too large")
		return verr
	}

	if err := checkShape(shape, raw, sentinel); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("api: decode body: %w", err)
	}
	return nil
}
