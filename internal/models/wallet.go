package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet transaction type enums.
const (
	WalletTxCredit     = "credit"
	WalletTxDebit      = "debit"
	WalletTxWithdrawal = "withdrawal"
	WalletTxRefund     = "refund"
)

// Wallet transaction status enums.
const (
	WalletTxStatusCompleted = "completed"
	WalletTxStatusPending   = "pending"
	WalletTxStatusFailed    = "failed"
)

// Wallet is the per-earner balance cache. It is derived from the payments
// ledger and fully reconstructible from it; the ledger always wins.
type Wallet struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	BalancePaise        int64     `json:"balance_paise"`
	PendingPaise        int64     `json:"pending_paise"`
	TotalEarnedPaise    int64     `json:"total_earned_paise"`
	TotalWithdrawnPaise int64     `json:"total_withdrawn_paise"`
	LastUpdated         time.Time `json:"last_updated"`
}

// WalletTransaction is one entry in a wallet's sub-ledger. The table carries
// a partial unique index wallet_tx_reference_idx on (wallet_id,
// reference_payment, type) WHERE reference_payment IS NOT NULL, making
// credit/debit idempotent by source ledger entry.
type WalletTransaction struct {
	ID               uuid.UUID    `json:"id"`
	WalletID         uuid.UUID    `json:"wallet_id"`
	Type             string       `json:"type"`
	AmountPaise      int64        `json:"amount_paise"`
	Status           string       `json:"status"`
	Description      string       `json:"description"`
	ReferencePayment *uuid.UUID   `json:"reference_payment,omitempty"`
	Metadata         WalletTxMeta `json:"metadata"`
	CreatedAt        time.Time    `json:"created_at"`
}

// WalletTxMeta is stored as jsonb on the wallet_transactions row.
type WalletTxMeta struct {
	SyncTransaction    bool       `json:"sync_transaction,omitempty"`
	BalanceBeforePaise int64      `json:"balance_before_paise"`
	BalanceAfterPaise  int64      `json:"balance_after_paise"`
	WithdrawalID       *uuid.UUID `json:"withdrawal_id,omitempty"`
}

// SyncIssue describes one detected drift between wallet and ledger,
// surfaced on the wallet summary read contract.
type SyncIssue struct {
	Type           string `json:"type"`
	Description    string `json:"description"`
	MagnitudePaise int64  `json:"magnitude_paise"`
}
