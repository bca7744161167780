package identity

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/unjob-ai/backend/internal/models"
)

// ErrDuplicateEmail is returned when registering with an email that already
// exists.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidCredentials is returned for a failed login or a bad token.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the normalized caller handed to every downstream component:
// one id, one trusted role string, nothing else.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// UserStore is the account persistence surface identity needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Service interface {
	Register(ctx context.Context, email, password, name, role string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (Identity, error)
}

type service struct {
	users  UserStore
	secret []byte
}

func NewService(users UserStore) Service {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "supersecretdev"
	}
	return &service{users: users, secret: []byte(secret)}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) Register(ctx context.Context, email, password, name, role string) (*models.User, error) {
	if role != models.RoleFreelancer && role != models.RoleHiring {
		return nil, errors.New("invalid role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(u.ID, u.Role)
}

func (s *service) issueToken(userID uuid.UUID, role string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (Identity, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return Identity{}, ErrInvalidCredentials
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: id, Role: c.Role}, nil
}
