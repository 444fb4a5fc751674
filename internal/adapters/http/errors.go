package http

import (
	"errors"
	"net/http"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/editor"
)

type errorBody struct {
	Error      string `json:"error"`
	QuestionID string `json:"questionId,omitempty"`
	Details    any    `json:"details,omitempty"`
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{errBadRequest, http.StatusBadRequest},
	{domain.ErrQuestionNotFound, http.StatusNotFound},
	{domain.ErrQuestionnaireNotFound, http.StatusNotFound},
	{domain.ErrOptionNotFound, http.StatusNotFound},
	{domain.ErrEdgeNotFound, http.StatusNotFound},
	{domain.ErrSessionNotFound, http.StatusNotFound},
	{domain.ErrQuestionLocked, http.StatusForbidden},
	{domain.ErrResponseExists, http.StatusConflict},
	{domain.ErrEdgeExists, http.StatusConflict},
	{domain.ErrStepInFlight, http.StatusConflict},
	{domain.ErrStaleResponse, http.StatusConflict},
	{domain.ErrNotNavigable, http.StatusConflict},
	{domain.ErrNoPrevious, http.StatusConflict},
	{domain.ErrInvalidState, http.StatusConflict},
	{domain.ErrTempIDRejected, http.StatusUnprocessableEntity},
	{domain.ErrConfirmationRequired, http.StatusUnprocessableEntity},
	{domain.ErrDuplicateOther, http.StatusUnprocessableEntity},
	{editor.ErrNotChoice, http.StatusUnprocessableEntity},
	{editor.ErrInvalidQuestion, http.StatusBadRequest},
	{domain.ErrTransient, http.StatusServiceUnavailable},
}

// validationErrors collects every ValidationError in err, including the
// members of a joined error.
func validationErrors(err error) []*domain.ValidationError {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			var out []*domain.ValidationError
			for _, e := range joined.Unwrap() {
				out = append(out, validationErrors(e)...)
			}
			return out
		}
		return []*domain.ValidationError{verr}
	}
	return nil
}

func statusOf(err error) int {
	var (
		structural *domain.StructuralError
		reconcile  *domain.ReconciliationError
	)
	switch {
	case len(validationErrors(err)) > 0:
		return http.StatusBadRequest
	case errors.As(err, &reconcile):
		return http.StatusConflict
	case errors.As(err, &structural):
		return http.StatusUnprocessableEntity
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error with the status of its kind.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}

	if verrs := validationErrors(err); len(verrs) > 0 {
		body.Error = verrs[0].Error()
		body.QuestionID = verrs[0].QuestionID
		body.Details = verrs
	}
	var reconcile *domain.ReconciliationError
	if errors.As(err, &reconcile) {
		body.QuestionID = reconcile.QuestionID
		body.Details = map[string]any{
			"unresolved": reconcile.Unresolved,
			"remaining":  reconcile.Remaining,
			"failed":     reconcile.Failed,
			"archived":   reconcile.Archived,
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}
