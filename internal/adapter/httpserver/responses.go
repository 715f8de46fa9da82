// Package httpserver contains HTTP handlers and middleware.
//
// It provides the operator-facing health surface: the /health, /ready,
// /status and /metrics handlers, plus the middleware and JSON response
// helpers the router wraps around them.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dealer-comms/engine/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrTenantUnknown):
		code = http.StatusNotFound
		codeStr = "TENANT_UNKNOWN"
	case errors.Is(err, domain.ErrTenantMisconfigured):
		code = http.StatusServiceUnavailable
		codeStr = "TENANT_MISCONFIGURED"
	case errors.Is(err, domain.ErrMissingCredentials):
		code = http.StatusServiceUnavailable
		codeStr = "MISSING_CREDENTIALS"
	case errors.Is(err, domain.ErrTransportError):
		code = http.StatusServiceUnavailable
		codeStr = "TRANSPORT_ERROR"
	case errors.Is(err, domain.ErrProviderRejected):
		code = http.StatusBadGateway
		codeStr = "PROVIDER_REJECTED"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
