package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unjob-ai/backend/internal/models"
)

// Event is one notification to raise. RelatedID points at the payment,
// withdrawal or conversation the event is about.
type Event struct {
	Type        models.NotificationType
	UserID      uuid.UUID
	RelatedID   *uuid.UUID
	AmountPaise int64
	Remaining   time.Duration // conversation_closing only
	Reason      string
}

// buildContent maps an event to user-facing title, message and action URL.
// The switch is exhaustive over models.NotificationType; an unknown type is
// an error, never a silent default.
func buildContent(e Event) (title, message, actionURL string, err error) {
	switch e.Type {
	case models.NotifyPaymentReceived:
		return "Payment received",
			fmt.Sprintf("You earned %s for your completed project. The amount is available in your wallet.", rupees(e.AmountPaise)),
			"/wallet", nil
	case models.NotifyProjectApproved:
		return "Project approved",
			"Your submitted work was approved by the company.",
			relatedURL("/projects", e.RelatedID), nil
	case models.NotifyProjectRejected:
		return "Project needs changes",
			fmt.Sprintf("Your submission was not approved: %s", e.Reason),
			relatedURL("/projects", e.RelatedID), nil
	case models.NotifyWithdrawalRequested:
		return "Withdrawal requested",
			fmt.Sprintf("Your withdrawal of %s was received and is awaiting processing.", rupees(e.AmountPaise)),
			relatedURL("/withdrawals", e.RelatedID), nil
	case models.NotifyWithdrawalProcessing:
		return "Withdrawal processing",
			fmt.Sprintf("Your withdrawal of %s is being processed.", rupees(e.AmountPaise)),
			relatedURL("/withdrawals", e.RelatedID), nil
	case models.NotifyWithdrawalCompleted:
		return "Withdrawal completed",
			fmt.Sprintf("Your withdrawal of %s was paid out.", rupees(e.AmountPaise)),
			relatedURL("/withdrawals", e.RelatedID), nil
	case models.NotifyWithdrawalFailed:
		return "Withdrawal failed",
			fmt.Sprintf("Your withdrawal of %s could not be completed. The amount was returned to your wallet.", rupees(e.AmountPaise)),
			relatedURL("/withdrawals", e.RelatedID), nil
	case models.NotifyWithdrawalCancelled:
		return "Withdrawal cancelled",
			fmt.Sprintf("Your withdrawal of %s was cancelled. The amount was returned to your wallet.", rupees(e.AmountPaise)),
			relatedURL("/withdrawals", e.RelatedID), nil
	case models.NotifyConversationClosing:
		return "Conversation closing soon",
			fmt.Sprintf("This project conversation becomes read-only in %s.", remainingText(e.Remaining)),
			relatedURL("/conversations", e.RelatedID), nil
	case models.NotifyConversationArchived:
		return "Conversation archived",
			"This project conversation is now read-only.",
			relatedURL("/conversations", e.RelatedID), nil
	case models.NotifyWalletSynced:
		return "Wallet balance corrected",
			fmt.Sprintf("Your wallet balance was reconciled against your earnings records (%s %s).", driftDirection(e.AmountPaise), rupees(abs(e.AmountPaise))),
			"/wallet", nil
	}
	return "", "", "", fmt.Errorf("unhandled notification type %q", e.Type)
}

func rupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, paise/100, paise%100)
}

func remainingText(d time.Duration) string {
	if d >= 48*time.Hour {
		return fmt.Sprintf("%d days", int(d.Hours())/24)
	}
	if d >= 2*time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return "1 hour"
}

func driftDirection(delta int64) string {
	if delta < 0 {
		return "adjusted down by"
	}
	return "adjusted up by"
}

func relatedURL(base string, id *uuid.UUID) string {
	if id == nil {
		return base
	}
	return base + "/" + id.String()
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
