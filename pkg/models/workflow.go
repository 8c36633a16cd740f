package models

import "time"

// Workflow is a named container of tasks created by an admin. Tasks belong to
// it by workflow_id reference and are attached only when fetched.
type Workflow struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Tasks       []Task    `json:"tasks,omitempty"`
}
