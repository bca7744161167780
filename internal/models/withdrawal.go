package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal status enums. completed, failed and cancelled are terminal.
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusCancelled  = "cancelled"
)

// Payout method enums.
const (
	PayoutMethodBank = "bank_transfer"
	PayoutMethodUPI  = "upi"
)

// Withdrawal is one payout request. It references the withdrawal payment in
// the ledger and the optimistic-debit wallet transaction created at request
// time; the debit is refunded if the request ends failed or cancelled.
type Withdrawal struct {
	ID                  uuid.UUID       `json:"id"`
	UserID              uuid.UUID       `json:"user_id"`
	PaymentID           uuid.UUID       `json:"payment_id"`
	WalletTransactionID uuid.UUID       `json:"wallet_transaction_id"`
	AmountPaise         int64           `json:"amount_paise"`
	Method              string          `json:"method"`
	PayoutDetails       PayoutDetails   `json:"payout_details"`
	Status              string          `json:"status"`
	BalanceSnapshot     BalanceSnapshot `json:"balance_snapshot"`
	SystemTracking      SystemTracking  `json:"system_tracking"`
	RefundInfo          RefundInfo      `json:"refund_info"`
	ProcessingInfo      ProcessingInfo  `json:"processing_info"`
	StatusHistory       []StatusChange  `json:"status_history"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// PayoutDetails carries the destination for the payout. Bank transfers need
// account number and IFSC; UPI needs the VPA.
type PayoutDetails struct {
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
	UPIAddress    string `json:"upi_address,omitempty"`
}

// BalanceSnapshot captures the wallet totals at request time, for audit.
type BalanceSnapshot struct {
	BalancePaise        int64 `json:"balance_paise"`
	TotalEarnedPaise    int64 `json:"total_earned_paise"`
	TotalWithdrawnPaise int64 `json:"total_withdrawn_paise"`
}

// SystemTracking records which systems have applied the deduction. All three
// converge to true on success and roll back to false on refund.
type SystemTracking struct {
	EarningsDeducted bool `json:"earnings_deducted"`
	WalletDeducted   bool `json:"wallet_deducted"`
	StatsUpdated     bool `json:"stats_updated"`
}

// RefundInfo tracks the mandatory refund on failed/cancelled withdrawals.
// IsRefunded guards the refund so retries apply it at most once.
type RefundInfo struct {
	IsRefunded          bool       `json:"is_refunded"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	RefundTransactionID *uuid.UUID `json:"refund_transaction_id,omitempty"`
}

// ProcessingInfo timestamps the operator-driven processing stage.
type ProcessingInfo struct {
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
}

// StatusChange is one entry in the append-only withdrawal audit trail.
type StatusChange struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	By     uuid.UUID `json:"by"`
	System bool      `json:"system"`
	Note   string    `json:"note,omitempty"`
}

// IsTerminalWithdrawalStatus reports whether the status admits no transition.
func IsTerminalWithdrawalStatus(status string) bool {
	switch status {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// CanTransitionWithdrawal is the lifecycle transition table:
// pending -> processing -> {completed | failed | cancelled}, with
// failed/cancelled also reachable from pending.
func CanTransitionWithdrawal(from, to string) bool {
	switch from {
	case WithdrawalStatusPending:
		return to == WithdrawalStatusProcessing || to == WithdrawalStatusFailed || to == WithdrawalStatusCancelled
	case WithdrawalStatusProcessing:
		return to == WithdrawalStatusCompleted || to == WithdrawalStatusFailed || to == WithdrawalStatusCancelled
	}
	return false
}
