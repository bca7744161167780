package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType is a closed set; content for each type is built by an
// exhaustive switch so a new type cannot silently fall through.
type NotificationType string

const (
	NotifyPaymentReceived      NotificationType = "payment_received"
	NotifyProjectApproved      NotificationType = "project_approved"
	NotifyProjectRejected      NotificationType = "project_rejected"
	NotifyWithdrawalRequested  NotificationType = "withdrawal_requested"
	NotifyWithdrawalProcessing NotificationType = "withdrawal_processing"
	NotifyWithdrawalCompleted  NotificationType = "withdrawal_completed"
	NotifyWithdrawalFailed     NotificationType = "withdrawal_failed"
	NotifyWithdrawalCancelled  NotificationType = "withdrawal_cancelled"
	NotifyConversationClosing  NotificationType = "conversation_closing"
	NotifyConversationArchived NotificationType = "conversation_archived"
	NotifyWalletSynced         NotificationType = "wallet_synced"
)

// Notification is one row in the notification sink. Delivery is
// fire-and-forget; DeliveredAt is stamped by the delivery worker.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	RelatedID   *uuid.UUID       `json:"related_id,omitempty"`
	ActionURL   string           `json:"action_url,omitempty"`
	Read        bool             `json:"read"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
