package models

import "time"

// Submission is an immutable record of assignee-provided content for one task.
// A task accumulates one per submit; the latest by SubmittedAt is the one an
// approval references.
type Submission struct {
	ID          string    `json:"id" db:"id"`
	TaskID      string    `json:"task_id" db:"task_id"`
	AssigneeID  string    `json:"assignee_id" db:"assignee_id"`
	Content     string    `json:"content" db:"content"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}
