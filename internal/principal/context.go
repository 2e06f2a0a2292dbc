package principal

import "context"

type contextKey struct{}

type roleContextKey struct{}

// ContextWith stores the authenticated principal in context.
func ContextWith(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the authenticated principal from context.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextKey{}).(*Principal)
	return p
}

// ContextWithRole memoizes the resolved role for the remainder of the
// request. The memo never outlives the request context.
func ContextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext returns the memoized role, if any.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey{}).(string)
	return role, ok
}
