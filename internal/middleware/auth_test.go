package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/unjob-ai/backend/internal/identity"
	"github.com/unjob-ai/backend/internal/models"
)

// stubIdentity validates exactly one token.
type stubIdentity struct {
	token string
	id    identity.Identity
}

func (s *stubIdentity) Register(context.Context, string, string, string, string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubIdentity) Login(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubIdentity) ValidateToken(_ context.Context, token string) (identity.Identity, error) {
	if token != s.token {
		return identity.Identity{}, identity.ErrInvalidCredentials
	}
	return s.id, nil
}

func okHandler(t *testing.T, wantUser uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromCtx(r.Context())
		if id == nil {
			t.Error("handler should see an identity")
		} else if id.UserID != wantUser {
			t.Errorf("identity user: got %s, want %s", id.UserID, wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	svc := &stubIdentity{token: "good-token", id: identity.Identity{UserID: userID, Role: models.RoleFreelancer}}
	handler := RequireAuth(svc)(okHandler(t, userID))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rec.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	guard := RequireRole(models.RoleHiring)(next)

	serve := func(id *identity.Identity) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if id != nil {
			req = req.WithContext(WithIdentity(req.Context(), id))
		}
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := serve(&identity.Identity{UserID: uuid.New(), Role: models.RoleHiring}); got != http.StatusOK {
		t.Errorf("hiring role: got %d, want 200", got)
	}
	if got := serve(&identity.Identity{UserID: uuid.New(), Role: models.RoleFreelancer}); got != http.StatusForbidden {
		t.Errorf("freelancer role: got %d, want 403", got)
	}
	// Admins pass every role check.
	if got := serve(&identity.Identity{UserID: uuid.New(), Role: models.RoleAdmin}); got != http.StatusOK {
		t.Errorf("admin role: got %d, want 200", got)
	}
	if got := serve(nil); got != http.StatusUnauthorized {
		t.Errorf("no identity: got %d, want 401", got)
	}
}
