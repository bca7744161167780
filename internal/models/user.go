package models

import (
	"time"

	"github.com/google/uuid"
)

// Role enums. The engine trusts the resolved role string.
const (
	RoleFreelancer = "freelancer"
	RoleHiring     = "hiring"
	RoleAdmin      = "admin"
)

// User is the slice of the account record this engine reads and updates.
// TotalEarningsPaise and CompletedProjects are the aggregate stats bumped
// on settlement and restored on withdrawal refund.
type User struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	PasswordHash       string    `json:"-"`
	TotalEarningsPaise int64     `json:"total_earnings_paise"`
	CompletedProjects  int       `json:"completed_projects"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
