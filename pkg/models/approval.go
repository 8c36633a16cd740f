package models

import "time"

type Decision string

const (
	ApprovedDecision Decision = "approved"
	RejectedDecision Decision = "rejected"
)

// Valid reports whether d is a known decision outcome.
func (d Decision) Valid() bool {
	return d == ApprovedDecision || d == RejectedDecision
}

// TaskStatus maps the decision to the status it puts the task in.
func (d Decision) TaskStatus() TaskStatus {
	if d == ApprovedDecision {
		return ApprovedTaskStatus
	}
	return RejectedTaskStatus
}

// Approval is an approver's immutable decision record. It references the most
// recent submission at decision time; a task collects one approval per cycle.
type Approval struct {
	ID           string    `json:"id" db:"id"`
	TaskID       string    `json:"task_id" db:"task_id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	ApproverID   string    `json:"approver_id" db:"approver_id"`
	Decision     Decision  `json:"decision" db:"decision"`
	Comments     string    `json:"comments" db:"comments"`
	ApprovedAt   time.Time `json:"approved_at" db:"approved_at"`
}
