package auth

import (
	"net/http"

	"github.com/quartermaster-erp/quartermaster/internal/platform/httpx"
	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// RequireAuth authenticates the request and stores the principal in the
// context. Unauthenticated requests get the 401 envelope.
func (o *Orchestrator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := o.Authenticate(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		ctx := principal.ContextWith(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission authorizes the already-authenticated principal for an
// action and memoizes the resolved role for the rest of the request.
func (o *Orchestrator) RequirePermission(action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := principal.FromContext(ctx)
			if p == nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if _, ok := principal.RoleFromContext(ctx); !ok {
				if role, err := o.resolver.Resolve(ctx, p.ID); err == nil {
					ctx = principal.ContextWithRole(ctx, role)
				}
			}
			if err := o.Authorize(ctx, p, action, resourceType); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
