package withdrawal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

// ErrNotFound is returned when no withdrawal exists for the id.
var ErrNotFound = errors.New("withdrawal not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, user_id, payment_id, wallet_transaction_id, amount_paise, method,
			payout_details, status, balance_snapshot, system_tracking, refund_info, processing_info, status_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, w.ID, w.UserID, w.PaymentID, w.WalletTransactionID, w.AmountPaise, w.Method,
		w.PayoutDetails, w.Status, w.BalanceSnapshot, w.SystemTracking, w.RefundInfo, w.ProcessingInfo, w.StatusHistory).
		Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, selectWithdrawal+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// GetForUpdateTx locks the withdrawal row; state transitions and the refund
// guard serialize on this lock.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRow(ctx, selectWithdrawal+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// UpdateTx writes the mutable state of a withdrawal: status, the audit
// trail, and the tracking blocks.
func (r *Repository) UpdateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = $2, system_tracking = $3, refund_info = $4, processing_info = $5,
		    status_history = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, w.ID, w.Status, w.SystemTracking, w.RefundInfo, w.ProcessingInfo, w.StatusHistory).
		Scan(&w.UpdatedAt)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, selectWithdrawal+`
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

const selectWithdrawal = `
	SELECT id, user_id, payment_id, wallet_transaction_id, amount_paise, method, payout_details,
	       status, balance_snapshot, system_tracking, refund_info, processing_info, status_history,
	       created_at, updated_at
	FROM withdrawals`

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.PaymentID, &w.WalletTransactionID, &w.AmountPaise, &w.Method,
		&w.PayoutDetails, &w.Status, &w.BalanceSnapshot, &w.SystemTracking, &w.RefundInfo,
		&w.ProcessingInfo, &w.StatusHistory, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
