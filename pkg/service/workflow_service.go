package service

import (
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Logger defines the logging interface the services depend on.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// WorkflowService manages workflow definitions and task creation. All
// mutations are admin-gated through the actor's role capabilities.
type WorkflowService struct {
	store  storage.Store
	logger Logger
}

func NewWorkflowService(store storage.Store, logger Logger) *WorkflowService {
	return &WorkflowService{store: store, logger: logger}
}

func (s *WorkflowService) CreateWorkflow(actor models.User, name, description string) (wf models.Workflow, err error) {
	if !actor.Role.CanManageWorkflows() {
		return models.Workflow{}, errors.Wrap(ErrForbidden, "only admins can create workflows")
	}
	if name == "" {
		return models.Workflow{}, errors.Wrap(ErrInvalidInput, "workflow name cannot be empty")
	}
	if len(name) > 100 {
		return models.Workflow{}, errors.Wrap(ErrInvalidInput, "workflow name too long (max 100 characters)")
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.Workflow{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	wf = models.Workflow{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   actor.ID,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err = txStore.SaveWorkflow(wf); err != nil {
		return models.Workflow{}, err
	}
	s.logger.Infof("Created workflow '%s' with ID %s", name, wf.ID)
	return wf, nil
}

// GetWorkflow fetches a workflow with its tasks attached.
func (s *WorkflowService) GetWorkflow(id string) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(id)
	if err != nil {
		return models.Workflow{}, err
	}
	tasks, err := s.store.ListTasks(storage.TaskFilter{WorkflowID: id})
	if err != nil {
		return models.Workflow{}, errors.Wrapf(err, "failed to list tasks of workflow %s", id)
	}
	wf.Tasks = tasks
	return wf, nil
}

// ListWorkflows returns all workflows for admins and, for everyone else, the
// workflows containing a task the actor is a party to.
func (s *WorkflowService) ListWorkflows(actor models.User) ([]models.Workflow, error) {
	if actor.Role == models.AdminRole {
		return s.store.ListWorkflows()
	}
	tasks, err := s.store.ListTasks(storage.TaskFilter{PartyID: actor.ID})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, t := range tasks {
		if !seen[t.WorkflowID] {
			seen[t.WorkflowID] = true
			ids = append(ids, t.WorkflowID)
		}
	}
	return s.store.ListWorkflowsByIDs(ids)
}

// TransitionInput is a transition rule supplied at task creation. Rules are
// set once; there is no endpoint to mutate them afterwards. IsAutomatic
// defaults to true when the field is omitted; only an explicit false keeps the
// rule from auto-firing.
type TransitionInput struct {
	Type          models.TransitionType `json:"transition_type"`
	TargetTaskIDs []string              `json:"target_task_ids"`
	IsAutomatic   *bool                 `json:"is_automatic"`
}

func (in TransitionInput) automatic() bool {
	return in.IsAutomatic == nil || *in.IsAutomatic
}

// TaskInput carries the admin-supplied fields for a new task.
type TaskInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Deadline    *time.Time        `json:"deadline,omitempty"`
	AssigneeID  string            `json:"assignee_id"`
	ApproverID  string            `json:"approver_id"`
	Transitions []TransitionInput `json:"transitions"`
}

// CreateTask creates a task under a workflow, with its transition rules
// embedded. Target task ids are not validated against existing tasks: a rule
// may point at a task the admin creates a moment later, and the engine skips
// missing targets at fire time.
func (s *WorkflowService) CreateTask(actor models.User, workflowID string, in TaskInput) (task models.Task, err error) {
	if !actor.Role.CanManageWorkflows() {
		return models.Task{}, errors.Wrap(ErrForbidden, "only admins can create tasks")
	}
	if in.Title == "" {
		return models.Task{}, errors.Wrap(ErrInvalidInput, "task title cannot be empty")
	}
	if in.AssigneeID == "" || in.ApproverID == "" {
		return models.Task{}, errors.Wrap(ErrInvalidInput, "task requires an assignee and an approver")
	}
	for _, tr := range in.Transitions {
		if !tr.Type.Valid() {
			return models.Task{}, errors.Wrapf(ErrInvalidInput, "invalid transition type '%s'", tr.Type)
		}
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.Task{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if _, err = txStore.GetWorkflow(workflowID); err != nil {
		return models.Task{}, err
	}

	now := time.Now().UTC()
	task = models.Task{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
		AssigneeID:  in.AssigneeID,
		ApproverID:  in.ApproverID,
		Status:      models.NotStartedTaskStatus,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, tr := range in.Transitions {
		task.Transitions = append(task.Transitions, models.TaskTransition{
			ID:            uuid.NewString(),
			TaskID:        task.ID,
			Type:          tr.Type,
			TargetTaskIDs: tr.TargetTaskIDs,
			IsAutomatic:   tr.automatic(),
		})
	}
	if err = txStore.SaveTask(task); err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Created task '%s' with ID %s in workflow %s", task.Title, task.ID, workflowID)
	return task, nil
}

// ListUsers returns all accounts; admin only.
func (s *WorkflowService) ListUsers(actor models.User) ([]models.User, error) {
	if actor.Role != models.AdminRole {
		return nil, errors.Wrap(ErrForbidden, "only admins can view users")
	}
	return s.store.ListUsers()
}
