package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment type enums. A gig_payment settles an approved project into the
// freelancer's earnings; a withdrawal moves earnings out to a payout.
const (
	PaymentTypeGig          = "gig_payment"
	PaymentTypeMilestone    = "milestone_payment"
	PaymentTypeWithdrawal   = "withdrawal"
	PaymentTypeSubscription = "subscription"
)

// Payment status enums. A payment is immutable once completed.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

// Payment is the ledger record for every money movement. The payments table
// carries a partial unique index payments_settlement_anchor_idx on
// (related_project, type, payee) WHERE status IN ('pending','completed')
// AND type = 'gig_payment', so duplicate settlement inserts fail with 23505.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	Payer          uuid.UUID       `json:"payer"`
	Payee          uuid.UUID       `json:"payee"`
	AmountPaise    int64           `json:"amount_paise"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	RelatedGig     *uuid.UUID      `json:"related_gig,omitempty"`
	RelatedProject *uuid.UUID      `json:"related_project,omitempty"`
	Metadata       PaymentMetadata `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PaymentMetadata is stored as jsonb on the payments row.
type PaymentMetadata struct {
	AutoPayment             bool   `json:"auto_payment,omitempty"`
	PlatformCommissionPaise int64  `json:"platform_commission_paise,omitempty"`
	OriginalBudgetPaise     int64  `json:"original_budget_paise,omitempty"`
	IsInternalTransfer      bool   `json:"is_internal_transfer,omitempty"`
	TransferID              string `json:"transfer_id,omitempty"`
}

// IsTerminalPaymentStatus reports whether the status admits no further change.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}
