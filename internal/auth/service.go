package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
	"github.com/quartermaster-erp/quartermaster/internal/token"
)

// Service wraps credential issuance business rules.
type Service struct {
	principals principal.RepositoryPort
	sessions   SessionRepository
	codec      *token.Codec
}

// NewService constructs a new Service.
func NewService(principals principal.RepositoryPort, sessions SessionRepository, codec *token.Codec) *Service {
	return &Service{principals: principals, sessions: sessions, codec: codec}
}

// Login validates email/password credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*principal.Principal, string, error) {
	p, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			return nil, "", err
		}
		return nil, "", shared.ErrInvalidCredentials
	}
	if !p.IsActive {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}

	tok, err := s.codec.Create(token.Claims{
		token.ClaimUserID:   p.ID,
		token.ClaimUsername: p.Username,
		token.ClaimEmail:    p.Email,
	})
	if err != nil {
		return nil, "", err
	}
	return p, tok, nil
}

// Refresh re-signs a still-valid token after confirming its subject still
// exists. The old token is not invalidated; it runs out on its own expiry.
func (s *Service) Refresh(ctx context.Context, raw string) (string, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return "", err
	}
	id, ok := claims.Int64(token.ClaimUserID)
	if !ok {
		return "", shared.ErrMalformedToken
	}
	exists, err := s.principals.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", shared.ErrPrincipalNotFound
	}
	return s.codec.Refresh(raw)
}

// TokenTTL exposes the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.codec.TTL()
}

// RegisterSession persists the session metadata for the dual-path migration
// window.
func (s *Service) RegisterSession(ctx context.Context, id string, principalID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, principalID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}
