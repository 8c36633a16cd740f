package storage

import (
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on uniqueness violations (duplicate user email).
var ErrConflict = errors.New("conflict")

// TaskFilter narrows task scans. Zero fields are ignored. PartyID matches
// tasks where the user is either the assignee or the approver.
type TaskFilter struct {
	WorkflowID string
	AssigneeID string
	ApproverID string
	PartyID    string
	Statuses   []models.TaskStatus
}

// Store defines the storage operations for the approval service. Begin
// returns a transactional view with the same interface; Commit/Rollback only
// apply to that view.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// User operations
	SaveUser(u models.User) error
	GetUser(id string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
	ListUsers() ([]models.User, error)

	// Workflow operations
	SaveWorkflow(w models.Workflow) error
	GetWorkflow(id string) (models.Workflow, error)
	ListWorkflows() ([]models.Workflow, error)
	ListWorkflowsByIDs(ids []string) ([]models.Workflow, error)
	CountWorkflows() (int, error)

	// Task operations; SaveTask persists the embedded transition rules too
	SaveTask(t models.Task) error
	GetTask(id string) (models.Task, error)
	ListTasks(f TaskFilter) ([]models.Task, error)
	CountTasks(f TaskFilter) (int, error)
	UpdateTaskStatus(id string, status models.TaskStatus, updatedAt time.Time) error

	// Submission operations
	SaveSubmission(s models.Submission) error
	LatestSubmission(taskID string) (models.Submission, error)
	ListSubmissions(taskID string) ([]models.Submission, error)

	// Approval operations
	SaveApproval(a models.Approval) error
	ListApprovals(taskID string) ([]models.Approval, error)

	// Comment operations
	SaveComment(c models.Comment) error
	ListComments(taskID string) ([]models.Comment, error)
}
