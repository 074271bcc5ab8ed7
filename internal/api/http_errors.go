package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flowline-dev/flowline/internal/core"
)

// errorResponse is the JSON error body for every failed request.
type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError maps domain errors onto HTTP status codes and writes the
// JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorResponse{Error: err.Error()}

	var domainErr *core.DomainError
	if errors.As(err, &domainErr) {
		body.Code = domainErr.Code
		body.Details = domainErr.Details
		status = statusFor(domainErr)
	}

	writeJSON(w, status, body)
}

func statusFor(err *core.DomainError) int {
	switch err.Category {
	case core.ErrCatNotFound:
		return http.StatusNotFound
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests
	case core.ErrCatNetwork:
		return http.StatusBadGateway
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout
	case core.ErrCatState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a request body into v, rejecting unknown fields so
// client typos surface instead of silently dropping config.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
