package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bolso/internal/core"
	"bolso/internal/log"
)

// retryAfterSeconds is sent with 503 responses caused by remote failures.
const retryAfterSeconds = 5

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRemoteFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the matching status. Internal details are
// only exposed for validation and not-found errors.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	body := errorBody{Kind: log.ErrorType(err), RequestID: w.Header().Get("X-Request-ID")}

	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithError(err).WithOperation(op)
	if user, uerr := core.UserFromContext(r.Context()); uerr == nil {
		fields.WithUser(user)
	}

	switch status {
	case http.StatusUnprocessableEntity:
		body.Error = err.Error()
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			body.Field = ve.Field
		}
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	case http.StatusNotFound:
		body.Error = "not found"
		logger.WarnContext(r.Context(), "Record not found", fields.ToSlice()...)
	case http.StatusUnauthorized:
		body.Error = "missing user"
		logger.WarnContext(r.Context(), "Unauthenticated request", fields.ToSlice()...)
	case http.StatusServiceUnavailable:
		body.Error = "temporarily unavailable, retry later"
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		logger.ErrorContext(r.Context(), "Remote dependency failed", fields.ToSlice()...)
	default:
		body.Error = "internal error"
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	}

	writeJSON(w, status, body)
}
