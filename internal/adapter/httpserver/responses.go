// Package httpserver exposes the chat dispatch core over a JSON REST API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto status codes. Typed errors
// contribute their payload as details when the caller passed none.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details any) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"

	var (
		limited  *domain.RateLimitedError
		rejected *domain.RejectedError
	)
	switch {
	case errors.As(err, &limited):
		code, codeStr = http.StatusTooManyRequests, "RATE_LIMITED"
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		if details == nil {
			details = map[string]int{"retry_after": limited.RetryAfterSeconds, "used": limited.Used, "limit": limited.Limit}
		}
	case errors.As(err, &rejected):
		code, codeStr = http.StatusUnprocessableEntity, "VALIDATION_REJECTED"
		if details == nil {
			details = map[string]string{"reason": rejected.Reason}
		}
	case errors.Is(err, domain.ErrAllTiersExhausted):
		code, codeStr = http.StatusBadGateway, "ALL_TIERS_EXHAUSTED"
	case errors.Is(err, domain.ErrLimiterUnavailable):
		code, codeStr = http.StatusServiceUnavailable, "LIMITER_UNAVAILABLE"
	case errors.Is(err, domain.ErrRateLimited):
		code, codeStr = http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrValidationRejected):
		code, codeStr = http.StatusUnprocessableEntity, "VALIDATION_REJECTED"
	case errors.Is(err, domain.ErrInvalidArgument):
		code, codeStr = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code, codeStr = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code, codeStr = http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		code, codeStr = http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrBackendFailure):
		code, codeStr = http.StatusBadGateway, "BACKEND_FAILURE"
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
