package models

import (
	"time"

	"github.com/google/uuid"
)

// Project status enums (the slice settlement cares about).
const (
	ProjectStatusInProgress = "in_progress"
	ProjectStatusSubmitted  = "submitted"
	ProjectStatusApproved   = "approved"
	ProjectStatusRejected   = "rejected"
)

// Gig status enums.
const (
	GigStatusActive    = "active"
	GigStatusCompleted = "completed"
)

// Project links a gig, the company that posted it, the freelancer working
// it, and the accepted application.
type Project struct {
	ID             uuid.UUID  `json:"id"`
	GigID          uuid.UUID  `json:"gig_id"`
	CompanyID      uuid.UUID  `json:"company_id"`
	FreelancerID   uuid.UUID  `json:"freelancer_id"`
	ApplicationID  uuid.UUID  `json:"application_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Status         string     `json:"status"`
	Feedback       string     `json:"feedback,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Gig is the posting the project fulfils; BudgetPaise is the settlement base.
type Gig struct {
	ID                 uuid.UUID  `json:"id"`
	CompanyID          uuid.UUID  `json:"company_id"`
	Title              string     `json:"title"`
	BudgetPaise        int64      `json:"budget_paise"`
	Status             string     `json:"status"`
	SelectedFreelancer *uuid.UUID `json:"selected_freelancer,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
}

// Application is the freelancer's accepted application for the gig.
type Application struct {
	ID           uuid.UUID `json:"id"`
	GigID        uuid.UUID `json:"gig_id"`
	FreelancerID uuid.UUID `json:"freelancer_id"`
	Status       string    `json:"status"`
}
