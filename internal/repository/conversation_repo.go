package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx, selectConversation+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// SetAutoClose arms or disarms scheduled archival. History is replaced
// wholesale; callers append/modify entries before saving.
func (r *ConversationRepo) SetAutoClose(ctx context.Context, c *models.Conversation) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET auto_close_enabled = $2, auto_close_at = $3, auto_close_reason = $4,
		    warnings_sent = $5, auto_close_history = $6, updated_at = now()
		WHERE id = $1
	`, c.ID, c.AutoCloseEnabled, c.AutoCloseAt, c.AutoCloseReason, c.WarningsSent, c.AutoCloseHistory)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueForClose returns active conversations whose auto-close time has
// passed. The status filter makes a repeated sweep a no-op.
func (r *ConversationRepo) ListDueForClose(ctx context.Context, now time.Time) ([]*models.Conversation, error) {
	rows, err := r.pool.Query(ctx, selectConversation+`
		WHERE auto_close_enabled AND auto_close_at <= $1 AND status = $2
	`, now, models.ConversationStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConversations(rows)
}

// ListDueForWarning returns active scheduled conversations that have fired
// fewer than the full set of warnings.
func (r *ConversationRepo) ListDueForWarning(ctx context.Context) ([]*models.Conversation, error) {
	rows, err := r.pool.Query(ctx, selectConversation+`
		WHERE auto_close_enabled AND status = $1 AND warnings_sent < $2
	`, models.ConversationStatusActive, len(models.AutoCloseWarnings))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConversations(rows)
}

// Archive transitions one due conversation to archived read-only state.
// The WHERE clause re-checks status so concurrent sweeps archive it exactly
// once; false means another pass already did.
func (r *ConversationRepo) Archive(ctx context.Context, c *models.Conversation, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET status = $2, read_only = TRUE, auto_close_history = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, c.ID, models.ConversationStatusArchived, c.AutoCloseHistory, models.ConversationStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BumpWarnings advances the warning counter, guarding against concurrent
// sweeps re-firing a threshold.
func (r *ConversationRepo) BumpWarnings(ctx context.Context, id uuid.UUID, from, to int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET warnings_sent = $3, updated_at = now()
		WHERE id = $1 AND warnings_sent = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateSystemMessage posts an engine-authored message into a conversation.
func (r *ConversationRepo) CreateSystemMessage(ctx context.Context, conversationID uuid.UUID, content string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, content, system)
		VALUES ($1, $2, $3, TRUE)
	`, uuid.New(), conversationID, content)
	return err
}

const selectConversation = `
	SELECT id, project_id, participants, status, read_only, auto_close_enabled, auto_close_at,
	       auto_close_reason, warnings_sent, auto_close_history, created_at, updated_at
	FROM conversations`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.ProjectID, &c.Participants, &c.Status, &c.ReadOnly,
		&c.AutoCloseEnabled, &c.AutoCloseAt, &c.AutoCloseReason, &c.WarningsSent,
		&c.AutoCloseHistory, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectConversations(rows pgx.Rows) ([]*models.Conversation, error) {
	var list []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
