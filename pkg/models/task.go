package models

import "time"

type TaskStatus string

const (
	NotStartedTaskStatus TaskStatus = "not_started"
	InProgressTaskStatus TaskStatus = "in_progress"
	SubmittedTaskStatus  TaskStatus = "submitted"
	ApprovedTaskStatus   TaskStatus = "approved"
	RejectedTaskStatus   TaskStatus = "rejected"
)

var validTaskStatuses = map[TaskStatus]bool{
	NotStartedTaskStatus: true,
	InProgressTaskStatus: true,
	SubmittedTaskStatus:  true,
	ApprovedTaskStatus:   true,
	RejectedTaskStatus:   true,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return validTaskStatuses[s]
}

// CanSubmit reports whether an assignee submission is a legal transition from
// s. Rejected is included so an assignee can resubmit after a rejection
// without waiting for a transition rule to reset the task.
func (s TaskStatus) CanSubmit() bool {
	return s == NotStartedTaskStatus || s == InProgressTaskStatus || s == RejectedTaskStatus
}

// Decided reports whether s carries an approval outcome. Neither status is
// terminal: a transition rule may reset the task to not_started at any time.
func (s TaskStatus) Decided() bool {
	return s == ApprovedTaskStatus || s == RejectedTaskStatus
}

// Open reports whether the task still awaits assignee work.
func (s TaskStatus) Open() bool {
	return s == NotStartedTaskStatus || s == InProgressTaskStatus
}

// Task is a unit of work with exactly one assignee and one approver. Status
// moves through the lifecycle only via the services and the transition
// engine; tasks are never deleted, they persist for audit.
type Task struct {
	ID          string           `json:"id" db:"id"`
	WorkflowID  string           `json:"workflow_id" db:"workflow_id"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description" db:"description"`
	Deadline    *time.Time       `json:"deadline,omitempty" db:"deadline"`
	AssigneeID  string           `json:"assignee_id" db:"assignee_id"`
	ApproverID  string           `json:"approver_id" db:"approver_id"`
	Status      TaskStatus       `json:"status" db:"status"`
	Transitions []TaskTransition `json:"transitions"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}
