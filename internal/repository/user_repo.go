package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.Role, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE email = $1`, email))
}

// AddEarningsTx bumps the freelancer's aggregate stats inside the settlement
// transaction: earnings go up by the payout and the completed-projects
// counter increments.
func (r *UserRepo) AddEarningsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, payoutPaise int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE users
		SET total_earnings_paise = total_earnings_paise + $2,
		    completed_projects = completed_projects + 1,
		    updated_at = now()
		WHERE id = $1
	`, id, payoutPaise)
	return err
}

// AdjustEarningsTx shifts the aggregate earnings figure without touching the
// project counter. Withdrawal requests pass a negative delta; refunds pass
// the positive counterpart.
func (r *UserRepo) AdjustEarningsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaPaise int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE users
		SET total_earnings_paise = GREATEST(total_earnings_paise + $2, 0), updated_at = now()
		WHERE id = $1
	`, id, deltaPaise)
	return err
}

// SetEarningsTx overwrites the aggregate earnings figure; reconciliation
// mirrors the corrected wallet totals through this.
func (r *UserRepo) SetEarningsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, totalEarningsPaise int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET total_earnings_paise = $2, updated_at = now() WHERE id = $1
	`, id, totalEarningsPaise)
	return err
}

const selectUser = `
	SELECT id, email, name, role, password_hash, total_earnings_paise, completed_projects, created_at, updated_at
	FROM users`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash,
		&u.TotalEarningsPaise, &u.CompletedProjects, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
