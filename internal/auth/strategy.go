package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
	"github.com/quartermaster-erp/quartermaster/internal/token"
)

// Strategy authenticates a request from one credential source. Strategies
// are tried in a fixed order; runtime capability sniffing is deliberately
// not a thing here.
type Strategy interface {
	Name() string
	Authenticate(r *http.Request) (*principal.Principal, error)
}

// TokenStrategy authenticates via a bearer token. The token only resolves
// WHO the caller is; the principal must still exist in the store, and the
// role is always re-derived later.
type TokenStrategy struct {
	codec      *token.Codec
	principals principal.RepositoryPort
}

// NewTokenStrategy constructs a TokenStrategy.
func NewTokenStrategy(codec *token.Codec, principals principal.RepositoryPort) *TokenStrategy {
	return &TokenStrategy{codec: codec, principals: principals}
}

// Name identifies the strategy in logs.
func (s *TokenStrategy) Name() string { return "token" }

// Authenticate verifies the bearer credential and confirms the principal
// still exists. A cryptographically valid token for a deleted or inactive
// principal is rejected.
func (s *TokenStrategy) Authenticate(r *http.Request) (*principal.Principal, error) {
	raw, ok := token.FromRequest(r)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return nil, err
	}
	id, ok := claims.Int64(token.ClaimUserID)
	if !ok {
		return nil, shared.ErrMalformedToken
	}
	return lookupPrincipal(r, s.principals, id)
}

// SessionStrategy authenticates via the session cookie loaded by the
// middleware stack. It exists to support clients that have not migrated to
// bearer tokens yet.
type SessionStrategy struct {
	principals principal.RepositoryPort
}

// NewSessionStrategy constructs a SessionStrategy.
func NewSessionStrategy(principals principal.RepositoryPort) *SessionStrategy {
	return &SessionStrategy{principals: principals}
}

// Name identifies the strategy in logs.
func (s *SessionStrategy) Name() string { return "session" }

// Authenticate reads the principal id from the request session and
// re-validates that the principal still exists.
func (s *SessionStrategy) Authenticate(r *http.Request) (*principal.Principal, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.Principal() == "" {
		return nil, shared.ErrUnauthenticated
	}
	id, err := strconv.ParseInt(sess.Principal(), 10, 64)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	return lookupPrincipal(r, s.principals, id)
}

func lookupPrincipal(r *http.Request, repo principal.RepositoryPort, id int64) (*principal.Principal, error) {
	p, err := repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrPrincipalNotFound
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, shared.ErrPrincipalNotFound
	}
	return p, nil
}
