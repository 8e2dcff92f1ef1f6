package api

import (
	"errors"
	"net/http"

	"github.com/xraph/smsrelay"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error    string             `json:"error"`
	Problems []smsrelay.Problem `json:"problems,omitempty"`
}

// mapError writes err with the matching status code. Unexpected errors are
// logged and reported as 500 without detail.
func (h *Handler) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *smsrelay.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Err.Error(), Problems: verr.Problems})
	case errors.Is(err, smsrelay.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, smsrelay.ErrUnauthenticated.Error())
	case errors.Is(err, smsrelay.ErrOrganisationNotFound),
		errors.Is(err, smsrelay.ErrMessageNotFound),
		errors.Is(err, smsrelay.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, smsrelay.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
