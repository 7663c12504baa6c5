package httpx

import (
	"errors"
	"net/http"

	"github.com/sentra-authz/sentra/internal/shared"
)

// RespondError maps domain errors to HTTP status codes inside the envelope.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		fail(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		fail(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		fail(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		fail(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		fail(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// Fail sends a failure envelope with an explicit status and code.
func Fail(w http.ResponseWriter, status int, code, message string) {
	fail(w, status, code, message)
}

func fail(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}
