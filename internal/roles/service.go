package roles

import (
	"context"
	"errors"
	"strings"
)

// Service handles role administration.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole inserts a new role. Names are unique and stored lowercase.
func (s *Service) CreateRole(ctx context.Context, name, displayName, description string) (*Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, errors.New("roles: role name required")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = DisplayName(name)
	}
	return s.repo.CreateRole(ctx, name, displayName, description)
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, displayName, description string) (*Role, error) {
	return s.repo.UpdateRole(ctx, id, displayName, description)
}

// DeleteRole removes a role. System protected roles are refused.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}
