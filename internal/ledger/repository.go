package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

// ErrDuplicateSettlement is returned when an insert trips the
// payments_settlement_anchor_idx partial unique index on
// (related_project, type, payee). The caller treats it as
// "already processed", not as a failure.
var ErrDuplicateSettlement = errors.New("settlement already recorded for this project and payee")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts a payment inside the given transaction. A unique
// violation on the settlement anchor maps to ErrDuplicateSettlement.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO payments (id, payer, payee, amount_paise, type, status, related_gig, related_project, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, p.Payer, p.Payee, p.AmountPaise, p.Type, p.Status, p.RelatedGig, p.RelatedProject, p.Metadata).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSettlement
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, selectPayment+` WHERE id = $1`, id))
}

// FindSettlement returns the existing gig_payment for (project, payee), if
// any pending or completed one exists.
func (r *Repository) FindSettlement(ctx context.Context, projectID, payee uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, selectPayment+`
		WHERE related_project = $1 AND payee = $2 AND type = $3 AND status IN ($4, $5)
	`, projectID, payee, models.PaymentTypeGig, models.PaymentStatusPending, models.PaymentStatusCompleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// UpdateStatusTx moves a payment to a new status inside the transaction.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// SumCompletedEarnings sums completed gig and milestone payments where the
// user is payee.
func (r *Repository) SumCompletedEarnings(ctx context.Context, payee uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_paise), 0) FROM payments
		WHERE payee = $1 AND type IN ($2, $3) AND status = $4
	`, payee, models.PaymentTypeGig, models.PaymentTypeMilestone, models.PaymentStatusCompleted).Scan(&sum)
	return sum, err
}

// SumActiveWithdrawals sums withdrawal payments where the user is payer and
// the withdrawal did not end failed or cancelled.
func (r *Repository) SumActiveWithdrawals(ctx context.Context, payer uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_paise), 0) FROM payments
		WHERE payer = $1 AND type = $2 AND status NOT IN ($3, $4)
	`, payer, models.PaymentTypeWithdrawal, models.PaymentStatusFailed, models.PaymentStatusCancelled).Scan(&sum)
	return sum, err
}

// SumPendingEarnings sums pending gig and milestone payments for the payee.
func (r *Repository) SumPendingEarnings(ctx context.Context, payee uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_paise), 0) FROM payments
		WHERE payee = $1 AND type IN ($2, $3) AND status = $4
	`, payee, models.PaymentTypeGig, models.PaymentTypeMilestone, models.PaymentStatusPending).Scan(&sum)
	return sum, err
}

// MonthlyEarning is one bucket of the six-month earnings breakdown.
type MonthlyEarning struct {
	Month       time.Time `json:"month"`
	AmountPaise int64     `json:"amount_paise"`
	Count       int       `json:"count"`
}

// MonthlyEarnings returns completed earnings bucketed by month for the last
// months months, most recent first.
func (r *Repository) MonthlyEarnings(ctx context.Context, payee uuid.UUID, months int) ([]MonthlyEarning, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('month', created_at) AS month, COALESCE(SUM(amount_paise), 0), COUNT(*)
		FROM payments
		WHERE payee = $1 AND type IN ($2, $3) AND status = $4
		  AND created_at >= date_trunc('month', now()) - make_interval(months => $5 - 1)
		GROUP BY month ORDER BY month DESC
	`, payee, models.PaymentTypeGig, models.PaymentTypeMilestone, models.PaymentStatusCompleted, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyEarning
	for rows.Next() {
		var m MonthlyEarning
		if err := rows.Scan(&m.Month, &m.AmountPaise, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AutoManualSplit returns completed earnings split by metadata.auto_payment.
func (r *Repository) AutoManualSplit(ctx context.Context, payee uuid.UUID) (autoPaise, manualPaise int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_paise) FILTER (WHERE (metadata->>'auto_payment')::bool IS TRUE), 0),
			COALESCE(SUM(amount_paise) FILTER (WHERE (metadata->>'auto_payment')::bool IS NOT TRUE), 0)
		FROM payments
		WHERE payee = $1 AND type IN ($2, $3) AND status = $4
	`, payee, models.PaymentTypeGig, models.PaymentTypeMilestone, models.PaymentStatusCompleted).
		Scan(&autoPaise, &manualPaise)
	return autoPaise, manualPaise, err
}

// ListByUser returns payments where the user is payer or payee, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, selectPayment+`
		WHERE payer = $1 OR payee = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

const selectPayment = `
	SELECT id, payer, payee, amount_paise, type, status, related_gig, related_project, metadata, created_at, updated_at
	FROM payments`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.Payer, &p.Payee, &p.AmountPaise, &p.Type, &p.Status,
		&p.RelatedGig, &p.RelatedProject, &p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
