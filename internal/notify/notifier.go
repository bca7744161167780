package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/unjob-ai/backend/internal/models"
)

// DeliverArgs is the River job payload for notification delivery.
type DeliverArgs struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

func (DeliverArgs) Kind() string { return "deliver_notification" }

// InsertDeliverTxFunc enqueues a delivery job within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertDeliverTxFunc func(ctx context.Context, tx pgx.Tx, args DeliverArgs) error

// InsertDeliverFunc enqueues a delivery job outside any transaction.
type InsertDeliverFunc func(ctx context.Context, args DeliverArgs) error

// Store is the notification persistence surface.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateTx(ctx context.Context, tx pgx.Tx, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}

// Notifier writes notification rows and enqueues their delivery. Callers on
// the financial path treat errors as best-effort: log, never roll back.
type Notifier struct {
	store         Store
	insertDeliver InsertDeliverFunc
	insertTx      InsertDeliverTxFunc
	log           *slog.Logger
}

func NewNotifier(store Store, insertDeliver InsertDeliverFunc, insertTx InsertDeliverTxFunc, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{store: store, insertDeliver: insertDeliver, insertTx: insertTx, log: log}
}

// Notify creates the notification and enqueues delivery in its own
// transaction scope.
func (n *Notifier) Notify(ctx context.Context, e Event) error {
	row, err := n.buildRow(e)
	if err != nil {
		return err
	}
	if err := n.store.Create(ctx, row); err != nil {
		return err
	}
	if n.insertDeliver != nil {
		if err := n.insertDeliver(ctx, DeliverArgs{NotificationID: row.ID}); err != nil {
			// The row exists; delivery can be re-enqueued later.
			n.log.Warn("enqueue notification delivery", "notification_id", row.ID, "error", err)
		}
	}
	return nil
}

// NotifyTx creates the notification and enqueues delivery inside the
// caller's transaction, so both commit with the financial write. The writes
// run under a savepoint: a failed statement would otherwise abort the whole
// transaction on Postgres, and callers on the financial path must stay
// committable after swallowing a notification error.
func (n *Notifier) NotifyTx(ctx context.Context, tx pgx.Tx, e Event) error {
	row, err := n.buildRow(e)
	if err != nil {
		return err
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := n.store.CreateTx(ctx, sp, row); err != nil {
		sp.Rollback(ctx)
		return err
	}
	if n.insertTx != nil {
		if err := n.insertTx(ctx, sp, DeliverArgs{NotificationID: row.ID}); err != nil {
			sp.Rollback(ctx)
			return err
		}
	}
	return sp.Commit(ctx)
}

func (n *Notifier) buildRow(e Event) (*models.Notification, error) {
	title, message, actionURL, err := buildContent(e)
	if err != nil {
		return nil, err
	}
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    e.UserID,
		Type:      e.Type,
		Title:     title,
		Message:   message,
		RelatedID: e.RelatedID,
		ActionURL: actionURL,
	}, nil
}

// DeliverWorker hands a stored notification to the external delivery
// channel. The push/email transport lives outside this engine; delivery here
// means the row is stamped and visible to the user-facing feed.
type DeliverWorker struct {
	river.WorkerDefaults[DeliverArgs]
	store Store
	log   *slog.Logger
}

func NewDeliverWorker(store Store, log *slog.Logger) *DeliverWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverWorker{store: store, log: log}
}

func (w *DeliverWorker) Work(ctx context.Context, job *river.Job[DeliverArgs]) error {
	n, err := w.store.GetByID(ctx, job.Args.NotificationID)
	if err != nil {
		return err
	}
	if n.DeliveredAt != nil {
		return nil
	}
	if err := w.store.MarkDelivered(ctx, n.ID); err != nil {
		return err
	}
	w.log.Info("notification delivered", "notification_id", n.ID, "type", n.Type, "user_id", n.UserID)
	return nil
}
