package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a write colliding with an existing row.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedToken indicates a credential that does not parse as a token.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature indicates a token whose signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired indicates a token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid indicates a token before its nbf claim.
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrPrincipalNotFound indicates the referenced principal no longer exists.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrUnauthenticated indicates no usable credential on the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated principal lacking permission.
	ErrForbidden = errors.New("forbidden")
	// ErrStoreUnavailable indicates the persistence backend could not answer in time.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsCredentialError reports whether err belongs to the credential-validation
// family that is normalized to ErrUnauthenticated at the orchestrator
// boundary. The precise sub-reason is never surfaced to callers.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenNotYetValid) ||
		errors.Is(err, ErrPrincipalNotFound)
}
