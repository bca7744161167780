package reconcile

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/notify"
	"github.com/unjob-ai/backend/internal/wallet"
)

// WalletStore is the wallet persistence surface reconciliation overwrites.
type WalletStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error)
	UpdateBalancesTx(ctx context.Context, tx pgx.Tx, w *models.Wallet) error
	CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LedgerSource provides the authoritative sums.
type LedgerSource interface {
	SumCompletedEarnings(ctx context.Context, payee uuid.UUID) (int64, error)
	SumActiveWithdrawals(ctx context.Context, payer uuid.UUID) (int64, error)
}

// UserStats mirrors corrected totals into the earner's aggregate stats.
type UserStats interface {
	SetEarningsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, totalEarningsPaise int64) error
}

// Notifier is optional; corrections raise a best-effort notification.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// Result reports one reconciliation pass.
type Result struct {
	Changed    bool  `json:"changed"`
	DeltaPaise int64 `json:"delta_paise"`
}

// Service recomputes wallet state strictly from the ledger and overwrites
// the cache when it drifted. The ledger always wins; the wallet is
// disposable and fully reconstructible.
type Service struct {
	wallets  WalletStore
	ledger   LedgerSource
	users    UserStats
	notifier Notifier
	log      *slog.Logger
}

func NewService(wallets WalletStore, ledger LedgerSource, users UserStats, notifier Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{wallets: wallets, ledger: ledger, users: users, notifier: notifier, log: log}
}

// Reconcile repairs one earner's wallet. Drift within the rounding
// tolerance is left alone; anything larger is overwritten and recorded as a
// synthetic sync transaction carrying the before/after balances.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*Result, error) {
	gross, err := s.ledger.SumCompletedEarnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.ledger.SumActiveWithdrawals(ctx, userID)
	if err != nil {
		return nil, err
	}
	expected := wallet.ExpectedBalance(gross, withdrawals)

	tx, err := s.wallets.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := s.wallets.GetForUpdateTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	drift := expected - w.BalancePaise
	if drift <= wallet.DriftTolerancePaise && drift >= -wallet.DriftTolerancePaise {
		return &Result{Changed: false, DeltaPaise: drift}, nil
	}

	before := w.BalancePaise
	w.BalancePaise = expected
	w.TotalEarnedPaise = gross
	w.TotalWithdrawnPaise = withdrawals
	if err := s.wallets.UpdateBalancesTx(ctx, tx, w); err != nil {
		return nil, err
	}

	txType := models.WalletTxCredit
	if drift < 0 {
		txType = models.WalletTxDebit
	}
	syncTx := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    w.ID,
		Type:        txType,
		AmountPaise: abs(drift),
		Status:      models.WalletTxStatusCompleted,
		Description: "Balance reconciled against earnings records",
		Metadata: models.WalletTxMeta{
			SyncTransaction:    true,
			BalanceBeforePaise: before,
			BalanceAfterPaise:  expected,
		},
	}
	if err := s.wallets.CreateTransactionTx(ctx, tx, syncTx); err != nil {
		return nil, err
	}
	if err := s.users.SetEarningsTx(ctx, tx, userID, expected); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("wallet drift corrected", "user_id", userID, "delta_paise", drift,
		"balance_before", before, "balance_after", expected)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notify.Event{
			Type:        models.NotifyWalletSynced,
			UserID:      userID,
			AmountPaise: drift,
		}); err != nil {
			s.log.Warn("reconciliation notification", "user_id", userID, "error", err)
		}
	}
	return &Result{Changed: true, DeltaPaise: drift}, nil
}

// ReconcileAll walks every wallet; the periodic sweep calls this. Per-user
// failures are logged and skipped so one bad wallet cannot stall the rest.
func (s *Service) ReconcileAll(ctx context.Context) (corrected int, err error) {
	ids, err := s.wallets.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		res, err := s.Reconcile(ctx, id)
		if err != nil {
			s.log.Error("reconcile wallet", "user_id", id, "error", err)
			continue
		}
		if res.Changed {
			corrected++
		}
	}
	return corrected, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
