package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

// ErrDuplicateReference is returned when a transaction insert trips the
// wallet_tx_reference_idx partial unique index on (wallet_id,
// reference_payment, type). The mutation was already applied.
var ErrDuplicateReference = errors.New("wallet transaction already recorded for this reference")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// GetOrCreate returns the user's wallet, creating an empty one on first
// access. Wallets are never deleted.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID)
	if err != nil {
		return nil, err
	}
	return scanWallet(r.pool.QueryRow(ctx, selectWallet+` WHERE user_id = $1`, userID))
}

// GetForUpdateTx locks the wallet row for the duration of the transaction.
// All mutations for one earner serialize on this lock. A missing wallet is
// created inside the transaction so first-touch flows (settlement credit
// before any read) still work.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, selectWallet+` WHERE user_id = $1 FOR UPDATE`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return scanWallet(tx.QueryRow(ctx, `
			INSERT INTO wallets (id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET last_updated = wallets.last_updated
			RETURNING id, user_id, balance_paise, pending_paise, total_earned_paise, total_withdrawn_paise, last_updated
		`, uuid.New(), userID))
	}
	return w, err
}

// UpdateBalancesTx writes the wallet's balance fields and bumps last_updated.
func (r *Repository) UpdateBalancesTx(ctx context.Context, tx pgx.Tx, w *models.Wallet) error {
	return tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance_paise = $2, pending_paise = $3, total_earned_paise = $4, total_withdrawn_paise = $5, last_updated = now()
		WHERE id = $1
		RETURNING last_updated
	`, w.ID, w.BalancePaise, w.PendingPaise, w.TotalEarnedPaise, w.TotalWithdrawnPaise).Scan(&w.LastUpdated)
}

// CreateTransactionTx appends a sub-ledger entry. A unique violation on the
// reference index maps to ErrDuplicateReference.
func (r *Repository) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount_paise, status, description, reference_payment, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.WalletID, t.Type, t.AmountPaise, t.Status, t.Description, t.ReferencePayment, t.Metadata).
		Scan(&t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// FindByReferenceTx returns the existing transaction for a source payment,
// or nil if none was recorded.
func (r *Repository) FindByReferenceTx(ctx context.Context, tx pgx.Tx, walletID, reference uuid.UUID, txType string) (*models.WalletTransaction, error) {
	t, err := scanTransaction(tx.QueryRow(ctx, selectTransaction+`
		WHERE wallet_id = $1 AND reference_payment = $2 AND type = $3
	`, walletID, reference, txType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListRecent returns the newest transactions for a wallet.
func (r *Repository) ListRecent(ctx context.Context, walletID uuid.UUID, limit int) ([]*models.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, selectTransaction+`
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2
	`, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ListUserIDs returns every wallet's user id; the reconciliation sweep walks
// this set.
func (r *Repository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM wallets ORDER BY last_updated`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const selectWallet = `
	SELECT id, user_id, balance_paise, pending_paise, total_earned_paise, total_withdrawn_paise, last_updated
	FROM wallets`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.BalancePaise, &w.PendingPaise,
		&w.TotalEarnedPaise, &w.TotalWithdrawnPaise, &w.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const selectTransaction = `
	SELECT id, wallet_id, type, amount_paise, status, description, reference_payment, metadata, created_at
	FROM wallet_transactions`

func scanTransaction(row pgx.Row) (*models.WalletTransaction, error) {
	var t models.WalletTransaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.AmountPaise, &t.Status,
		&t.Description, &t.ReferencePayment, &t.Metadata, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
