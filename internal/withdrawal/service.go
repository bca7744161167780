package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/notify"
	"github.com/unjob-ai/backend/internal/wallet"
)

// ErrBelowMinimum is returned when the requested amount is under the
// configured minimum payout.
var ErrBelowMinimum = errors.New("amount is below the minimum withdrawal")

// ErrMissingPayoutDetails is returned when the payout destination is
// incomplete for the chosen method.
var ErrMissingPayoutDetails = errors.New("payout details are incomplete")

// ErrInvalidTransition is returned for a transition the lifecycle does not
// allow.
var ErrInvalidTransition = errors.New("invalid withdrawal state transition")

// Store is the withdrawal persistence surface.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Withdrawal, error)
}

// LedgerStore writes the withdrawal payment record.
type LedgerStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payment) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// WalletOps is the wallet cache surface: the optimistic debit at request
// time and the mandatory refund on terminal failure.
type WalletOps interface {
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64, reference uuid.UUID, description string) (*wallet.MutationResult, error)
	RefundTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64, reference, withdrawalID uuid.UUID, description string) (*wallet.MutationResult, error)
}

// UserStats adjusts the earner's aggregate earnings figure.
type UserStats interface {
	AdjustEarningsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaPaise int64) error
}

// Notifier raises the per-transition notification.
type Notifier interface {
	NotifyTx(ctx context.Context, tx pgx.Tx, e notify.Event) error
}

// Service drives a withdrawal through
// pending -> processing -> {completed | failed | cancelled}.
type Service struct {
	store          Store
	ledger         LedgerStore
	wallets        WalletOps
	users          UserStats
	notifier       Notifier
	minPayoutPaise int64
	log            *slog.Logger
}

func NewService(store Store, ledgerStore LedgerStore, wallets WalletOps, users UserStats, notifier Notifier, minPayoutPaise int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:          store,
		ledger:         ledgerStore,
		wallets:        wallets,
		users:          users,
		notifier:       notifier,
		minPayoutPaise: minPayoutPaise,
		log:            log,
	}
}

// Request reserves funds for a payout: one transaction creates the pending
// withdrawal payment, debits the wallet, adjusts stats and records the
// withdrawal with its balance snapshot.
func (s *Service) Request(ctx context.Context, userID uuid.UUID, amountPaise int64, method string, details models.PayoutDetails) (*models.Withdrawal, error) {
	if amountPaise < s.minPayoutPaise {
		return nil, fmt.Errorf("%w: minimum is %d paise", ErrBelowMinimum, s.minPayoutPaise)
	}
	if err := validateDetails(method, details); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	payment := &models.Payment{
		ID:          uuid.New(),
		Payer:       userID,
		Payee:       userID,
		AmountPaise: amountPaise,
		Type:        models.PaymentTypeWithdrawal,
		Status:      models.PaymentStatusPending,
	}
	if err := s.ledger.CreateTx(ctx, tx, payment); err != nil {
		return nil, err
	}

	// Optimistic debit: funds are reserved now, paid out later. Balance
	// validation happens inside the debit under the wallet row lock.
	debit, err := s.wallets.DebitTx(ctx, tx, userID, amountPaise, payment.ID, "Withdrawal request")
	if err != nil {
		return nil, err
	}
	if err := s.users.AdjustEarningsTx(ctx, tx, userID, -amountPaise); err != nil {
		return nil, err
	}

	now := time.Now()
	w := &models.Withdrawal{
		ID:                  uuid.New(),
		UserID:              userID,
		PaymentID:           payment.ID,
		WalletTransactionID: debit.Transaction.ID,
		AmountPaise:         amountPaise,
		Method:              method,
		PayoutDetails:       details,
		Status:              models.WithdrawalStatusPending,
		BalanceSnapshot: models.BalanceSnapshot{
			BalancePaise:        debit.Transaction.Metadata.BalanceBeforePaise,
			TotalEarnedPaise:    debit.Wallet.TotalEarnedPaise,
			TotalWithdrawnPaise: debit.Wallet.TotalWithdrawnPaise - amountPaise,
		},
		SystemTracking: models.SystemTracking{
			EarningsDeducted: true,
			WalletDeducted:   true,
			StatsUpdated:     true,
		},
		StatusHistory: []models.StatusChange{{
			To:     models.WithdrawalStatusPending,
			At:     now,
			By:     userID,
			System: false,
			Note:   "withdrawal requested",
		}},
	}
	if err := s.store.CreateTx(ctx, tx, w); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyTx(ctx, tx, notify.Event{
		Type:        models.NotifyWithdrawalRequested,
		UserID:      userID,
		RelatedID:   &w.ID,
		AmountPaise: amountPaise,
	}); err != nil {
		s.log.Warn("withdrawal request notification", "withdrawal_id", w.ID, "error", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// MarkProcessing is the operator action that starts the payout.
func (s *Service) MarkProcessing(ctx context.Context, id, actorID uuid.UUID) (*models.Withdrawal, error) {
	return s.transition(ctx, id, models.WithdrawalStatusProcessing, actorID, false, "")
}

// MarkCompleted records the external bank transfer as done. The debit
// already happened at request time; no balance changes here.
func (s *Service) MarkCompleted(ctx context.Context, id, actorID uuid.UUID) (*models.Withdrawal, error) {
	return s.transition(ctx, id, models.WithdrawalStatusCompleted, actorID, false, "")
}

// MarkFailed ends the withdrawal as failed and refunds the reserved amount.
func (s *Service) MarkFailed(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.Withdrawal, error) {
	return s.transition(ctx, id, models.WithdrawalStatusFailed, actorID, false, reason)
}

// Cancel un-arms a not-yet-paid withdrawal and refunds the reserved amount.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.Withdrawal, error) {
	return s.transition(ctx, id, models.WithdrawalStatusCancelled, actorID, false, reason)
}

// transition applies one lifecycle step under the withdrawal row lock,
// appends the audit entry and raises exactly one notification for the new
// state. Terminal failure states run the refund, which is guarded by
// RefundInfo.IsRefunded and safe to retry until it sticks.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to string, actorID uuid.UUID, system bool, note string) (*models.Withdrawal, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := s.store.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionWithdrawal(w.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, to)
	}

	now := time.Now()
	from := w.Status
	w.Status = to

	switch to {
	case models.WithdrawalStatusProcessing:
		w.ProcessingInfo.ProcessingStartedAt = &now
	case models.WithdrawalStatusCompleted:
		w.ProcessingInfo.ProcessingCompletedAt = &now
		if err := s.ledger.UpdateStatusTx(ctx, tx, w.PaymentID, models.PaymentStatusCompleted); err != nil {
			return nil, err
		}
	case models.WithdrawalStatusFailed, models.WithdrawalStatusCancelled:
		if err := s.refundTx(ctx, tx, w, to, now); err != nil {
			return nil, err
		}
	}

	w.StatusHistory = append(w.StatusHistory, models.StatusChange{
		From:   from,
		To:     to,
		At:     now,
		By:     actorID,
		System: system,
		Note:   note,
	})
	if err := s.store.UpdateTx(ctx, tx, w); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyTx(ctx, tx, notify.Event{
		Type:        notificationFor(to),
		UserID:      w.UserID,
		RelatedID:   &w.ID,
		AmountPaise: w.AmountPaise,
	}); err != nil {
		s.log.Warn("withdrawal transition notification", "withdrawal_id", w.ID, "to", to, "error", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// refundTx reverses the optimistic debit. Losing an earner's reserved funds
// is unacceptable, so the refund must eventually succeed: IsRefunded stays
// false until every step commits, and a retried transition re-runs it.
func (s *Service) refundTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal, terminal string, now time.Time) error {
	if w.RefundInfo.IsRefunded {
		return nil
	}
	res, err := s.wallets.RefundTx(ctx, tx, w.UserID, w.AmountPaise, w.PaymentID, w.ID,
		fmt.Sprintf("Refund for %s withdrawal", terminal))
	if err != nil {
		return err
	}
	if err := s.users.AdjustEarningsTx(ctx, tx, w.UserID, w.AmountPaise); err != nil {
		return err
	}
	paymentStatus := models.PaymentStatusFailed
	if terminal == models.WithdrawalStatusCancelled {
		paymentStatus = models.PaymentStatusCancelled
	}
	if err := s.ledger.UpdateStatusTx(ctx, tx, w.PaymentID, paymentStatus); err != nil {
		return err
	}
	w.RefundInfo.IsRefunded = true
	w.RefundInfo.RefundedAt = &now
	if res.Transaction != nil {
		w.RefundInfo.RefundTransactionID = &res.Transaction.ID
	}
	w.SystemTracking = models.SystemTracking{}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error) {
	return s.store.ListByUser(ctx, userID, 50)
}

// StatusView is the withdrawal read contract.
type StatusView struct {
	Withdrawal       *models.Withdrawal `json:"withdrawal"`
	TimeSinceRequest time.Duration      `json:"time_since_request"`
}

func (s *Service) Status(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	w, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusView{Withdrawal: w, TimeSinceRequest: time.Since(w.CreatedAt)}, nil
}

func validateDetails(method string, d models.PayoutDetails) error {
	switch method {
	case models.PayoutMethodBank:
		if d.AccountNumber == "" || d.IFSC == "" || d.AccountHolder == "" {
			return fmt.Errorf("%w: bank transfers need account number, IFSC and holder name", ErrMissingPayoutDetails)
		}
	case models.PayoutMethodUPI:
		if d.UPIAddress == "" {
			return fmt.Errorf("%w: UPI payouts need a UPI address", ErrMissingPayoutDetails)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrMissingPayoutDetails, method)
	}
	return nil
}

func notificationFor(status string) models.NotificationType {
	switch status {
	case models.WithdrawalStatusProcessing:
		return models.NotifyWithdrawalProcessing
	case models.WithdrawalStatusCompleted:
		return models.NotifyWithdrawalCompleted
	case models.WithdrawalStatusFailed:
		return models.NotifyWithdrawalFailed
	case models.WithdrawalStatusCancelled:
		return models.NotifyWithdrawalCancelled
	}
	return models.NotifyWithdrawalRequested
}
