// Package common holds helpers shared by the feature handlers.
package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/localgroup/internal/httputil"
	"github.com/tendant/localgroup/pkg/domain"
)

// StatusFor maps a domain error kind to an HTTP status code.
// Unknown errors map to 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrFull),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error response. Internal errors are logged
// and replaced with a generic message.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		httputil.Error(w, status, "internal server error")
		return
	}
	httputil.Error(w, status, err.Error())
}

// PathUUID parses the named chi URL parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// DecodeRequest decodes a JSON request body into v, writing a 400 or 413
// response and returning false on failure.
func DecodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
			return false
		}
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
