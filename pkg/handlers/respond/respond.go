// Package respond writes JSON responses and maps ledger errors to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

// Decode reads the JSON request body into v. Unknown fields are rejected.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", storage.ErrValidation, err)
	}
	return nil
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var paramErr *api.InvalidParamFormatError
	switch {
	case errors.Is(err, storage.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.As(err, &paramErr), errors.Is(err, storage.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrRecipientNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrDuplicateEvent),
		errors.Is(err, storage.ErrInvalidState), errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInsufficientFunds), errors.Is(err, storage.ErrBelowMinimum):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Error writes err as an api.Error. Server errors and contention are logged
// and their detail is not returned to the client.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := Status(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	case errors.Is(err, storage.ErrBusy):
		logger.Warn("request contended", "method", r.Method, "path", r.URL.Path, "error", err)
		message = storage.ErrBusy.Error()
	case errors.Is(err, storage.ErrConflict):
		logger.Warn("request conflicted", "method", r.Method, "path", r.URL.Path, "error", err)
		message = storage.ErrConflict.Error()
	}
	JSON(w, status, api.Error{Error: message})
}

// ErrorHandler adapts Error to the router's parameter binding errors.
func ErrorHandler(logger *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		Error(w, r, logger, err)
	}
}
