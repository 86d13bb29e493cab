// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-fin/meridian/internal/shared"
)

// RespondError maps statement-engine error categories to HTTP responses
// using RFC7807. Validation and resolution failures are the caller's
// fault; missing data maps to 404.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrResolution):
		Problem(w, http.StatusUnprocessableEntity, "Resolution Failed", err.Error())
	case errors.Is(err, shared.ErrData):
		Problem(w, http.StatusNotFound, "Data Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
