package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fincore/internal/core"
	"fincore/internal/log"
	"fincore/internal/middleware/trace"
)

type errorBody struct {
	Error     string   `json:"error"`
	Retryable bool     `json:"retryable"`
	RequestID string   `json:"request_id,omitempty"`
	Applied   []string `json:"applied,omitempty"`
	Failed    string   `json:"failed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrPartialFailure), errors.Is(err, core.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	body := errorBody{
		Error:     err.Error(),
		Retryable: core.IsRetryable(err),
		RequestID: trace.GetRequestID(r.Context()),
	}
	var pf *core.PartialFailureError
	if errors.As(err, &pf) {
		body.Applied = pf.Applied
		body.Failed = pf.Failed
	}
	if status >= http.StatusInternalServerError {
		// Storage details stay in the logs.
		body.Error = http.StatusText(status)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op, log.FieldError, err, log.FieldStatusCode, status)
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected",
			log.FieldOperation, op, log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, body)
}
