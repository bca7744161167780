package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unjob-ai/backend/internal/models"
)

// ErrInvalidAmount is returned for zero or negative mutation amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrInsufficientBalance is returned when a debit exceeds the wallet balance.
// The wallet is not mutated.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// DriftTolerancePaise is the rounding tolerance below which the wallet cache
// is considered in sync with the ledger.
const DriftTolerancePaise = 100

// Store is the persistence surface the service needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error)
	UpdateBalancesTx(ctx context.Context, tx pgx.Tx, w *models.Wallet) error
	CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error
	FindByReferenceTx(ctx context.Context, tx pgx.Tx, walletID, reference uuid.UUID, txType string) (*models.WalletTransaction, error)
	ListRecent(ctx context.Context, walletID uuid.UUID, limit int) ([]*models.WalletTransaction, error)
}

// LedgerSums is the slice of the ledger the wallet summary compares against.
type LedgerSums interface {
	SumCompletedEarnings(ctx context.Context, payee uuid.UUID) (int64, error)
	SumActiveWithdrawals(ctx context.Context, payer uuid.UUID) (int64, error)
}

// MutationResult reports the outcome of a credit or debit. AlreadyApplied
// means a transaction for the same reference payment existed and nothing
// was changed.
type MutationResult struct {
	Wallet         *models.Wallet
	Transaction    *models.WalletTransaction
	AlreadyApplied bool
}

// Service mutates the per-earner balance cache. Every mutation runs under
// the wallet row lock and is idempotent by source payment reference.
type Service struct {
	store  Store
	ledger LedgerSums
	log    *slog.Logger
}

func NewService(store Store, ledger LedgerSums, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, ledger: ledger, log: log}
}

// Credit runs CreditTx in its own transaction.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amountPaise int64, reference uuid.UUID, description string) (*MutationResult, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (*MutationResult, error) {
		return s.CreditTx(ctx, tx, userID, amountPaise, reference, description)
	})
}

// Debit runs DebitTx in its own transaction.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amountPaise int64, reference uuid.UUID, description string) (*MutationResult, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (*MutationResult, error) {
		return s.DebitTx(ctx, tx, userID, amountPaise, reference, description)
	})
}

// CreditTx increases balance and total earned and appends a credit
// transaction referencing the source payment.
func (s *Service) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64, reference uuid.UUID, description string) (*MutationResult, error) {
	if amountPaise <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := s.store.GetForUpdateTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.FindByReferenceTx(ctx, tx, w.ID, reference, models.WalletTxCredit); err != nil {
		return nil, err
	} else if existing != nil {
		return &MutationResult{Wallet: w, Transaction: existing, AlreadyApplied: true}, nil
	}

	before := w.BalancePaise
	w.BalancePaise += amountPaise
	w.TotalEarnedPaise += amountPaise
	if err := s.store.UpdateBalancesTx(ctx, tx, w); err != nil {
		return nil, err
	}
	t := &models.WalletTransaction{
		ID:               uuid.New(),
		WalletID:         w.ID,
		Type:             models.WalletTxCredit,
		AmountPaise:      amountPaise,
		Status:           models.WalletTxStatusCompleted,
		Description:      description,
		ReferencePayment: &reference,
		Metadata: models.WalletTxMeta{
			BalanceBeforePaise: before,
			BalanceAfterPaise:  w.BalancePaise,
		},
	}
	// The wallet row lock serializes writers, so FindByReferenceTx above is
	// the idempotency check; a unique-index hit here is a genuine bug and
	// must roll the balance update back with it.
	if err := s.store.CreateTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return &MutationResult{Wallet: w, Transaction: t}, nil
}

// DebitTx decreases balance and increases total withdrawn, appending a
// withdrawal transaction. Fails before any mutation if the balance does not
// cover the amount.
func (s *Service) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64, reference uuid.UUID, description string) (*MutationResult, error) {
	if amountPaise <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := s.store.GetForUpdateTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.FindByReferenceTx(ctx, tx, w.ID, reference, models.WalletTxWithdrawal); err != nil {
		return nil, err
	} else if existing != nil {
		return &MutationResult{Wallet: w, Transaction: existing, AlreadyApplied: true}, nil
	}
	if w.BalancePaise < amountPaise {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, w.BalancePaise, amountPaise)
	}

	before := w.BalancePaise
	w.BalancePaise -= amountPaise
	w.TotalWithdrawnPaise += amountPaise
	if err := s.store.UpdateBalancesTx(ctx, tx, w); err != nil {
		return nil, err
	}
	t := &models.WalletTransaction{
		ID:               uuid.New(),
		WalletID:         w.ID,
		Type:             models.WalletTxWithdrawal,
		AmountPaise:      amountPaise,
		Status:           models.WalletTxStatusCompleted,
		Description:      description,
		ReferencePayment: &reference,
		Metadata: models.WalletTxMeta{
			BalanceBeforePaise: before,
			BalanceAfterPaise:  w.BalancePaise,
		},
	}
	if err := s.store.CreateTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return &MutationResult{Wallet: w, Transaction: t}, nil
}

// RefundTx reverses an earlier withdrawal debit: balance comes back, total
// withdrawn drops, and a refund transaction referencing the withdrawal
// payment is appended.
func (s *Service) RefundTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64, reference, withdrawalID uuid.UUID, description string) (*MutationResult, error) {
	if amountPaise <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := s.store.GetForUpdateTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.FindByReferenceTx(ctx, tx, w.ID, reference, models.WalletTxRefund); err != nil {
		return nil, err
	} else if existing != nil {
		return &MutationResult{Wallet: w, Transaction: existing, AlreadyApplied: true}, nil
	}

	before := w.BalancePaise
	w.BalancePaise += amountPaise
	w.TotalWithdrawnPaise -= amountPaise
	if w.TotalWithdrawnPaise < 0 {
		w.TotalWithdrawnPaise = 0
	}
	if err := s.store.UpdateBalancesTx(ctx, tx, w); err != nil {
		return nil, err
	}
	t := &models.WalletTransaction{
		ID:               uuid.New(),
		WalletID:         w.ID,
		Type:             models.WalletTxRefund,
		AmountPaise:      amountPaise,
		Status:           models.WalletTxStatusCompleted,
		Description:      description,
		ReferencePayment: &reference,
		Metadata: models.WalletTxMeta{
			BalanceBeforePaise: before,
			BalanceAfterPaise:  w.BalancePaise,
			WithdrawalID:       &withdrawalID,
		},
	}
	if err := s.store.CreateTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return &MutationResult{Wallet: w, Transaction: t}, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) (*MutationResult, error)) (*MutationResult, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	res, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// Summary is the wallet read contract: cached balances, recent transactions
// and a health block comparing the cache against the ledger.
type Summary struct {
	Wallet       *models.Wallet              `json:"wallet"`
	Transactions []*models.WalletTransaction `json:"transactions"`
	SystemHealth SystemHealth                `json:"system_health"`
}

type SystemHealth struct {
	InSync     bool               `json:"in_sync"`
	SyncIssues []models.SyncIssue `json:"sync_issues"`
}

// Summary builds the wallet summary. Detected drift is reported, not
// corrected; reconciliation is the repair path.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	w, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListRecent(ctx, w.ID, 20)
	if err != nil {
		return nil, err
	}

	gross, err := s.ledger.SumCompletedEarnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	withdrawn, err := s.ledger.SumActiveWithdrawals(ctx, userID)
	if err != nil {
		return nil, err
	}
	expected := ExpectedBalance(gross, withdrawn)

	health := SystemHealth{InSync: true}
	if drift := expected - w.BalancePaise; drift > DriftTolerancePaise || drift < -DriftTolerancePaise {
		health.InSync = false
		health.SyncIssues = append(health.SyncIssues, models.SyncIssue{
			Type:           "balance_drift",
			Description:    fmt.Sprintf("wallet balance %d differs from ledger-derived balance %d", w.BalancePaise, expected),
			MagnitudePaise: abs64(drift),
		})
	}
	if drift := gross - w.TotalEarnedPaise; drift > DriftTolerancePaise || drift < -DriftTolerancePaise {
		health.InSync = false
		health.SyncIssues = append(health.SyncIssues, models.SyncIssue{
			Type:           "earnings_drift",
			Description:    fmt.Sprintf("wallet total earned %d differs from ledger earnings %d", w.TotalEarnedPaise, gross),
			MagnitudePaise: abs64(drift),
		})
	}
	return &Summary{Wallet: w, Transactions: txns, SystemHealth: health}, nil
}

// ExpectedBalance is the ledger-derived balance, floored at zero.
func ExpectedBalance(grossEarnings, totalWithdrawals int64) int64 {
	b := grossEarnings - totalWithdrawals
	if b < 0 {
		b = 0
	}
	return b
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
