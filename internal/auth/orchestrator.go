package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/rbac"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// RoleResolver resolves the current role for a principal from the
// persistent store.
type RoleResolver interface {
	Resolve(ctx context.Context, principalID int64) (string, error)
}

// MetricsSink receives authentication and authorization outcomes.
type MetricsSink interface {
	ObserveAuthentication(strategy, outcome string)
	ObserveDenial(action string)
}

// Orchestrator composes the per-request authenticate-then-authorize
// pipeline. Every request re-executes the whole chain; the only carried
// state is a per-request role memo in the context.
type Orchestrator struct {
	strategies []Strategy
	resolver   RoleResolver
	engine     rbac.Engine
	logger     *slog.Logger
	metrics    MetricsSink
}

// SetMetrics attaches an outcome counter sink. Optional.
func (o *Orchestrator) SetMetrics(m MetricsSink) {
	o.metrics = m
}

// NewOrchestrator constructs an Orchestrator. Strategies are tried in the
// order given.
func NewOrchestrator(strategies []Strategy, resolver RoleResolver, engine rbac.Engine, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{strategies: strategies, resolver: resolver, engine: engine, logger: logger}
}

// Authenticate resolves the calling principal, trying each strategy in
// order. All credential sub-failures collapse to ErrUnauthenticated so the
// response never leaks whether a signature, expiry or lookup failed. A store
// outage is surfaced as such instead of masquerading as a bad credential.
func (o *Orchestrator) Authenticate(r *http.Request) (*principal.Principal, error) {
	for _, strategy := range o.strategies {
		p, err := strategy.Authenticate(r)
		if err == nil {
			o.observeAuthn(strategy.Name(), "ok")
			return p, nil
		}
		if errors.Is(err, shared.ErrStoreUnavailable) {
			o.observeAuthn(strategy.Name(), "store_unavailable")
			return nil, err
		}
		if !errors.Is(err, shared.ErrUnauthenticated) {
			o.observeAuthn(strategy.Name(), "rejected")
			o.logger.Debug("authentication strategy rejected credential",
				slog.String("strategy", strategy.Name()), slog.Any("error", err))
		}
	}
	return nil, shared.ErrUnauthenticated
}

// Authorize checks whether the principal may perform the action. The role is
// re-derived from the store, never read from token claims, so a stale token
// cannot carry elevated privilege. Any failure to determine the role denies.
func (o *Orchestrator) Authorize(ctx context.Context, p *principal.Principal, action, resourceType string) error {
	if p == nil {
		return shared.ErrUnauthenticated
	}
	role, err := o.role(ctx, p.ID)
	if err != nil {
		o.logger.Warn("authorize failing closed: role resolution",
			slog.Int64("principal_id", p.ID),
			slog.String("action", action),
			slog.String("resource_type", resourceType),
			slog.Any("error", err))
		o.observeDenial(action)
		return shared.ErrForbidden
	}
	if err := rbac.Require(ctx, o.engine, role, action); err != nil {
		if !errors.Is(err, shared.ErrForbidden) {
			o.logger.Warn("authorize failing closed: permission check",
				slog.String("role", role), slog.String("action", action), slog.Any("error", err))
		}
		o.observeDenial(action)
		return shared.ErrForbidden
	}
	return nil
}

func (o *Orchestrator) observeAuthn(strategy, outcome string) {
	if o.metrics != nil {
		o.metrics.ObserveAuthentication(strategy, outcome)
	}
}

func (o *Orchestrator) observeDenial(action string) {
	if o.metrics != nil {
		o.metrics.ObserveDenial(action)
	}
}

// Role returns the store-derived role for the principal, using the
// per-request memo when present.
func (o *Orchestrator) Role(ctx context.Context, p *principal.Principal) (string, error) {
	if p == nil {
		return "", shared.ErrUnauthenticated
	}
	return o.role(ctx, p.ID)
}

func (o *Orchestrator) role(ctx context.Context, principalID int64) (string, error) {
	if role, ok := principal.RoleFromContext(ctx); ok {
		return role, nil
	}
	return o.resolver.Resolve(ctx, principalID)
}
