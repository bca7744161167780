package archival

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/notify"
)

// DefaultDelay is how long after project approval a conversation stays open.
const DefaultDelay = 14 * 24 * time.Hour

// ConversationStore is the messaging-store surface archival drives.
type ConversationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	SetAutoClose(ctx context.Context, c *models.Conversation) error
	ListDueForClose(ctx context.Context, now time.Time) ([]*models.Conversation, error)
	ListDueForWarning(ctx context.Context) ([]*models.Conversation, error)
	Archive(ctx context.Context, c *models.Conversation, now time.Time) (bool, error)
	BumpWarnings(ctx context.Context, id uuid.UUID, from, to int) (bool, error)
	CreateSystemMessage(ctx context.Context, conversationID uuid.UUID, content string) error
}

// Notifier raises closing warnings and the archived notice.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// Service schedules and executes conversation auto-close. There are no
// in-process timers: the schedule is a persisted timestamp and the only
// transition path is the sweep, so a restart loses nothing.
type Service struct {
	store    ConversationStore
	notifier Notifier
	delay    time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewService(store ConversationStore, notifier Notifier, delay time.Duration, log *slog.Logger) *Service {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, notifier: notifier, delay: delay, now: time.Now, log: log}
}

// Schedule arms auto-close: the conversation archives delay from now.
// Re-scheduling an already-armed conversation cancels the previous entry
// and starts a fresh window.
func (s *Service) Schedule(ctx context.Context, conversationID uuid.UUID, reason string) error {
	c, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if c.Status != models.ConversationStatusActive {
		return nil
	}
	now := s.now()
	executeAt := now.Add(s.delay)

	if c.AutoCloseEnabled {
		cancelLatest(c, "rescheduled")
	}
	c.AutoCloseEnabled = true
	c.AutoCloseAt = &executeAt
	c.AutoCloseReason = reason
	c.WarningsSent = 0
	c.AutoCloseHistory = append(c.AutoCloseHistory, models.AutoCloseEvent{
		ScheduledAt: now,
		ExecuteAt:   executeAt,
		Reason:      reason,
	})
	return s.store.SetAutoClose(ctx, c)
}

// Cancel un-arms a pending auto-close before it fires.
func (s *Service) Cancel(ctx context.Context, conversationID uuid.UUID, reason string) error {
	c, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !c.AutoCloseEnabled {
		return nil
	}
	cancelLatest(c, reason)
	c.AutoCloseEnabled = false
	c.AutoCloseAt = nil
	c.AutoCloseReason = ""
	return s.store.SetAutoClose(ctx, c)
}

// Sweep archives every conversation whose auto-close time has passed. The
// due query filters on status=active and Archive re-checks it, so repeated
// or concurrent sweeps archive each conversation exactly once.
func (s *Service) Sweep(ctx context.Context) (archived int, err error) {
	now := s.now()
	due, err := s.store.ListDueForClose(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, c := range due {
		stampLatest(c, now)
		ok, err := s.store.Archive(ctx, c, now)
		if err != nil {
			s.log.Error("archive conversation", "conversation_id", c.ID, "error", err)
			continue
		}
		if !ok {
			// Another sweep pass got there first.
			continue
		}
		archived++
		if err := s.store.CreateSystemMessage(ctx, c.ID,
			"This conversation has been archived and is now read-only."); err != nil {
			s.log.Warn("archival system message", "conversation_id", c.ID, "error", err)
		}
		s.notifyParticipants(ctx, c, notify.Event{
			Type:      models.NotifyConversationArchived,
			RelatedID: &c.ID,
		})
	}
	return archived, nil
}

// SweepWarnings fires the 3-day, 1-day and 1-hour closing warnings. The
// warnings counter only moves forward and BumpWarnings is conditional on
// the old value, so each threshold fires at most once.
func (s *Service) SweepWarnings(ctx context.Context) error {
	now := s.now()
	pending, err := s.store.ListDueForWarning(ctx)
	if err != nil {
		return err
	}
	for _, c := range pending {
		if c.AutoCloseAt == nil {
			continue
		}
		remaining := c.AutoCloseAt.Sub(now)
		due := 0
		for i, threshold := range models.AutoCloseWarnings {
			if remaining <= threshold {
				due = i + 1
			}
		}
		if due <= c.WarningsSent {
			continue
		}
		ok, err := s.store.BumpWarnings(ctx, c.ID, c.WarningsSent, due)
		if err != nil {
			s.log.Error("bump close warnings", "conversation_id", c.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		s.notifyParticipants(ctx, c, notify.Event{
			Type:      models.NotifyConversationClosing,
			RelatedID: &c.ID,
			Remaining: remaining,
		})
	}
	return nil
}

func (s *Service) notifyParticipants(ctx context.Context, c *models.Conversation, e notify.Event) {
	for _, userID := range c.Participants {
		e.UserID = userID
		if err := s.notifier.Notify(ctx, e); err != nil {
			s.log.Warn("conversation notification", "conversation_id", c.ID, "user_id", userID, "error", err)
		}
	}
}

// cancelLatest marks the most recent live history entry cancelled.
func cancelLatest(c *models.Conversation, reason string) {
	for i := len(c.AutoCloseHistory) - 1; i >= 0; i-- {
		e := &c.AutoCloseHistory[i]
		if !e.Cancelled && e.ExecutedAt == nil {
			e.Cancelled = true
			e.CancelledReason = reason
			return
		}
	}
}

// stampLatest records execution time on the entry being fulfilled.
func stampLatest(c *models.Conversation, now time.Time) {
	for i := len(c.AutoCloseHistory) - 1; i >= 0; i-- {
		e := &c.AutoCloseHistory[i]
		if !e.Cancelled && e.ExecutedAt == nil {
			e.ExecutedAt = &now
			return
		}
	}
}
