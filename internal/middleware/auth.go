package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/unjob-ai/backend/internal/identity"
	"github.com/unjob-ai/backend/internal/models"
)

type contextKey string

const ctxIdentityKey contextKey = "identity"

// WithIdentity returns a context carrying the given identity, as RequireAuth
// would have produced it.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// IdentityFromCtx returns the caller resolved by RequireAuth, or nil.
func IdentityFromCtx(ctx context.Context) *identity.Identity {
	if id, ok := ctx.Value(ctxIdentityKey).(*identity.Identity); ok {
		return id
	}
	return nil
}

// RequireAuth validates the bearer token and puts the normalized Identity
// into the request context.
func RequireAuth(svc identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			id, err := svc.ValidateToken(r.Context(), strings.TrimPrefix(authz, prefix))
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxIdentityKey, &id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not in the allowed set. Admins
// pass every check.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromCtx(r.Context())
			if id == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if id.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		})
	}
}
