package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unjob-ai/backend/internal/models"
)

// ErrNotFound is returned when a project, gig or application link is missing.
var ErrNotFound = errors.New("not found")

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// SettlementContext is the project+gig+application triple settlement needs.
type SettlementContext struct {
	Project     *models.Project
	Gig         *models.Gig
	Application *models.Application
}

// GetSettlementContext loads the project with its gig and accepted
// application in one round trip. Missing links map to ErrNotFound.
func (r *ProjectRepo) GetSettlementContext(ctx context.Context, projectID uuid.UUID) (*SettlementContext, error) {
	var (
		p models.Project
		g models.Gig
		a models.Application
	)
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.gig_id, p.company_id, p.freelancer_id, p.application_id, p.conversation_id, p.status, p.feedback, p.created_at, p.updated_at,
		       g.id, g.company_id, g.title, g.budget_paise, g.status, g.selected_freelancer, g.closed_at,
		       a.id, a.gig_id, a.freelancer_id, a.status
		FROM projects p
		JOIN gigs g ON g.id = p.gig_id
		JOIN applications a ON a.id = p.application_id
		WHERE p.id = $1
	`, projectID).Scan(
		&p.ID, &p.GigID, &p.CompanyID, &p.FreelancerID, &p.ApplicationID, &p.ConversationID, &p.Status, &p.Feedback, &p.CreatedAt, &p.UpdatedAt,
		&g.ID, &g.CompanyID, &g.Title, &g.BudgetPaise, &g.Status, &g.SelectedFreelancer, &g.ClosedAt,
		&a.ID, &a.GigID, &a.FreelancerID, &a.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &SettlementContext{Project: &p, Gig: &g, Application: &a}, nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, gig_id, company_id, freelancer_id, application_id, conversation_id, status, feedback, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.GigID, &p.CompanyID, &p.FreelancerID, &p.ApplicationID, &p.ConversationID, &p.Status, &p.Feedback, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApproveTx marks the project approved and the gig completed inside the
// settlement transaction, so the durable record and the approval commit
// together.
func (r *ProjectRepo) ApproveTx(ctx context.Context, tx pgx.Tx, projectID, gigID, freelancerID uuid.UUID, feedback string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE projects SET status = $2, feedback = $3, updated_at = now() WHERE id = $1
	`, projectID, models.ProjectStatusApproved, feedback); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE gigs SET status = $2, selected_freelancer = $3, closed_at = now() WHERE id = $1
	`, gigID, models.GigStatusCompleted, freelancerID)
	return err
}

// Reject marks a submitted project rejected with the company's reason.
func (r *ProjectRepo) Reject(ctx context.Context, projectID uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects SET status = $2, feedback = $3, updated_at = now() WHERE id = $1
	`, projectID, models.ProjectStatusRejected, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
