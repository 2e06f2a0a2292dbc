package httpx

import (
	"errors"
	"net/http"

	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// ErrValidation marks request-body validation failures.
var ErrValidation = errors.New("validation failed")

// MsgForbidden is the fixed message clients receive on 403 responses.
const MsgForbidden = "Access denied. Insufficient permissions."

// MsgUnauthenticated is the fixed message clients receive on 401 responses.
// Credential sub-reasons are deliberately not echoed back.
const MsgUnauthenticated = "Authentication required."

// RespondError maps domain errors to envelope responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated),
		errors.Is(err, shared.ErrInvalidCredentials),
		shared.IsCredentialError(err):
		Fail(w, http.StatusUnauthorized, MsgUnauthenticated)
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, MsgForbidden)
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, shared.ErrConflict):
		Fail(w, http.StatusConflict, "Already exists.")
	case errors.Is(err, shared.ErrStoreUnavailable):
		Fail(w, http.StatusServiceUnavailable, "Service temporarily unavailable.")
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, "Internal error.")
	}
}
