package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unjob-ai/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (m *mockUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		// Same code path a unique index would produce.
		return &pgconn.PgError{Code: "23505"}
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRegisterLoginValidate(t *testing.T) {
	users := newMockUsers()
	svc := NewService(users)
	ctx := context.Background()

	u, err := svc.Register(ctx, "earner@example.com", "hunter22", "An Earner", models.RoleFreelancer)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.PasswordHash == "hunter22" {
		t.Error("password must be hashed")
	}

	token, err := svc.Login(ctx, "earner@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	id, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id.UserID != u.ID {
		t.Errorf("token subject: got %s, want %s", id.UserID, u.ID)
	}
	if id.Role != models.RoleFreelancer {
		t.Errorf("token role: got %q, want %q", id.Role, models.RoleFreelancer)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	users := newMockUsers()
	svc := NewService(users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "earner@example.com", "hunter22", "An Earner", models.RoleFreelancer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "earner@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMockUsers()
	svc := NewService(users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "earner@example.com", "hunter22", "A", models.RoleFreelancer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "earner@example.com", "other", "B", models.RoleHiring); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got: %v", err)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc := NewService(newMockUsers())
	if _, err := svc.Register(context.Background(), "root@example.com", "pw", "Root", models.RoleAdmin); err == nil {
		t.Error("self-registration as admin must fail")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewService(newMockUsers())
	if _, err := svc.ValidateToken(context.Background(), "not.a.token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got: %v", err)
	}
}
