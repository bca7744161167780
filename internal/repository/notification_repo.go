package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, action_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.ActionURL).Scan(&n.CreatedAt)
}

// CreateTx inserts a notification inside the caller's transaction so the row
// commits together with the financial write that caused it.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx pgx.Tx, n *models.Notification) error {
	return tx.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, action_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.ActionURL).Scan(&n.CreatedAt)
}

func (r *NotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, type, title, message, related_id, action_url, read, delivered_at, created_at
		FROM notifications WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.ActionURL, &n.Read, &n.DeliveredAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET delivered_at = now() WHERE id = $1 AND delivered_at IS NULL
	`, id)
	return err
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, related_id, action_url, read, delivered_at, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.ActionURL, &n.Read, &n.DeliveredAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}
