package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation status enums.
const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
	ConversationStatusBlocked  = "blocked"
	ConversationStatusPending  = "pending"
	ConversationStatusClosed   = "closed"
)

// Warning thresholds before auto-close, in firing order. The warnings_sent
// counter records how many have fired and only ever increases.
var AutoCloseWarnings = []time.Duration{
	72 * time.Hour,
	24 * time.Hour,
	1 * time.Hour,
}

// Conversation carries the archival-relevant fields of a project chat.
// Invariant: AutoCloseAt is set iff AutoCloseEnabled is true.
type Conversation struct {
	ID               uuid.UUID        `json:"id"`
	ProjectID        *uuid.UUID       `json:"project_id,omitempty"`
	Participants     []uuid.UUID      `json:"participants"`
	Status           string           `json:"status"`
	ReadOnly         bool             `json:"read_only"`
	AutoCloseEnabled bool             `json:"auto_close_enabled"`
	AutoCloseAt      *time.Time       `json:"auto_close_at,omitempty"`
	AutoCloseReason  string           `json:"auto_close_reason,omitempty"`
	WarningsSent     int              `json:"warnings_sent"`
	AutoCloseHistory []AutoCloseEvent `json:"auto_close_history"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// AutoCloseEvent is one scheduling record in metadata.auto_close_history.
type AutoCloseEvent struct {
	ScheduledAt     time.Time  `json:"scheduled_at"`
	ExecuteAt       time.Time  `json:"execute_at"`
	Reason          string     `json:"reason"`
	Cancelled       bool       `json:"cancelled,omitempty"`
	CancelledReason string     `json:"cancelled_reason,omitempty"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
}

// Message is a chat message; the engine only writes system messages.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Sender         *uuid.UUID `json:"sender,omitempty"`
	Content        string     `json:"content"`
	System         bool       `json:"system"`
	CreatedAt      time.Time  `json:"created_at"`
}
