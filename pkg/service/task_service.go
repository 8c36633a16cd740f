package service

import (
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TaskService handles the task lifecycle: submissions, approval decisions,
// status overrides, comments and dashboards. Ownership of the specific task
// is re-verified on every mutation; role membership alone is never trusted.
type TaskService struct {
	store  storage.Store
	engine *TransitionEngine
	logger Logger
}

func NewTaskService(store storage.Store, engine *TransitionEngine, logger Logger) *TaskService {
	return &TaskService{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// GetTask returns a task if the actor may view it.
func (ts *TaskService) GetTask(actor models.User, taskID string) (models.Task, error) {
	task, err := ts.store.GetTask(taskID)
	if err != nil {
		return models.Task{}, err
	}
	if !actor.Role.CanViewTask(actor.ID, task) {
		return models.Task{}, errors.Wrap(ErrForbidden, "not authorized to view this task")
	}
	return task, nil
}

// ListTasks returns the actor's role-scoped task list: admins see all,
// assignees and approvers see the tasks assigned to them.
func (ts *TaskService) ListTasks(actor models.User) ([]models.Task, error) {
	switch actor.Role {
	case models.AdminRole:
		return ts.store.ListTasks(storage.TaskFilter{})
	case models.AssigneeRole:
		return ts.store.ListTasks(storage.TaskFilter{AssigneeID: actor.ID})
	case models.ApproverRole:
		return ts.store.ListTasks(storage.TaskFilter{ApproverID: actor.ID})
	}
	return []models.Task{}, nil
}

// Submit records assignee-provided content for a task and advances it to
// submitted. Only the designated assignee may submit.
func (ts *TaskService) Submit(actor models.User, taskID, content string) (sub models.Submission, err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		return models.Submission{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ts.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	task, err := txStore.GetTask(taskID)
	if err != nil {
		return models.Submission{}, err
	}
	if !actor.Role.CanSubmitTask(actor.ID, task) {
		return models.Submission{}, errors.Wrap(ErrForbidden, "only the assigned user can submit this task")
	}
	if !task.Status.CanSubmit() {
		return models.Submission{}, errors.Wrapf(ErrInvalidState, "task %s cannot be submitted from status %s", taskID, task.Status)
	}

	now := time.Now().UTC()
	sub = models.Submission{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		AssigneeID:  actor.ID,
		Content:     content,
		SubmittedAt: now,
	}
	if err = txStore.SaveSubmission(sub); err != nil {
		return models.Submission{}, err
	}
	if err = txStore.UpdateTaskStatus(taskID, models.SubmittedTaskStatus, now); err != nil {
		return models.Submission{}, err
	}
	ts.logger.Infof("Task %s submitted by %s", taskID, actor.ID)
	return sub, nil
}

// Approve records the approver's decision against the latest submission and
// sets the task status accordingly, then hands the task to the transition
// engine. The status update and the approval record are one transaction; the
// cascade runs after commit and is never joined to the caller.
//
// A task that already carries a decision may be decided again; the matching
// rules re-fire. That permissiveness is deliberate and mirrors the admin
// override below.
func (ts *TaskService) Approve(actor models.User, taskID string, decision models.Decision, comments string) (models.Approval, error) {
	if !decision.Valid() {
		return models.Approval{}, errors.Wrapf(ErrInvalidInput, "invalid decision '%s'; must be 'approved' or 'rejected'", decision)
	}
	approval, err := ts.recordDecision(actor, taskID, decision, comments)
	if err != nil {
		return models.Approval{}, err
	}
	// The approval is committed; the cascade must not affect the response.
	ts.engine.Trigger(taskID, decision)
	return approval, nil
}

// recordDecision writes the approval record and the status change as one
// transaction.
func (ts *TaskService) recordDecision(actor models.User, taskID string, decision models.Decision, comments string) (approval models.Approval, err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		return models.Approval{}, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ts.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	task, err := txStore.GetTask(taskID)
	if err != nil {
		return models.Approval{}, err
	}
	if !actor.Role.CanDecideTask(actor.ID, task) {
		return models.Approval{}, errors.Wrap(ErrForbidden, "only the designated approver can decide this task")
	}

	latest, err := txStore.LatestSubmission(taskID)
	if errors.Is(err, storage.ErrNotFound) {
		err = errors.Wrapf(ErrInvalidState, "task %s has no submission to decide on", taskID)
		return models.Approval{}, err
	}
	if err != nil {
		return models.Approval{}, err
	}

	now := time.Now().UTC()
	approval = models.Approval{
		ID:           uuid.NewString(),
		TaskID:       taskID,
		SubmissionID: latest.ID,
		ApproverID:   actor.ID,
		Decision:     decision,
		Comments:     comments,
		ApprovedAt:   now,
	}
	if err = txStore.SaveApproval(approval); err != nil {
		return models.Approval{}, err
	}
	if err = txStore.UpdateTaskStatus(taskID, decision.TaskStatus(), now); err != nil {
		return models.Approval{}, err
	}
	ts.logger.Infof("Task %s decided '%s' by %s", taskID, decision, actor.ID)
	return approval, nil
}

// OverrideStatus sets a task's status directly, bypassing lifecycle
// validation. Assignees may only touch their own tasks; the looseness for
// other roles is a known weakness kept for compatibility.
func (ts *TaskService) OverrideStatus(actor models.User, taskID string, status models.TaskStatus) error {
	if !status.Valid() {
		return errors.Wrapf(ErrInvalidInput, "invalid task status '%s'", status)
	}
	task, err := ts.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if actor.Role == models.AssigneeRole && task.AssigneeID != actor.ID {
		return errors.Wrap(ErrForbidden, "not authorized to update this task")
	}
	if err := ts.store.UpdateTaskStatus(taskID, status, time.Now().UTC()); err != nil {
		return err
	}
	ts.logger.Infof("Task %s status overridden to '%s' by %s", taskID, status, actor.ID)
	return nil
}

// ListSubmissions returns a task's submission history, oldest first.
func (ts *TaskService) ListSubmissions(actor models.User, taskID string) ([]models.Submission, error) {
	if _, err := ts.store.GetTask(taskID); err != nil {
		return nil, err
	}
	return ts.store.ListSubmissions(taskID)
}

// AddComment attaches a comment to a task on behalf of any participant.
func (ts *TaskService) AddComment(actor models.User, taskID, content string) (models.Comment, error) {
	if _, err := ts.store.GetTask(taskID); err != nil {
		return models.Comment{}, err
	}
	c := models.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		UserID:    actor.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := ts.store.SaveComment(c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

func (ts *TaskService) ListComments(taskID string) ([]models.Comment, error) {
	return ts.store.ListComments(taskID)
}

// Dashboard assembles the role-shaped counters for the actor.
func (ts *TaskService) Dashboard(actor models.User) (models.Dashboard, error) {
	d := models.Dashboard{Role: actor.Role}
	count := func(f storage.TaskFilter) (*int, error) {
		n, err := ts.store.CountTasks(f)
		if err != nil {
			return nil, err
		}
		return &n, nil
	}

	var err error
	switch actor.Role {
	case models.AdminRole:
		var workflows int
		if workflows, err = ts.store.CountWorkflows(); err != nil {
			return models.Dashboard{}, err
		}
		d.TotalWorkflows = &workflows
		if d.TotalTasks, err = count(storage.TaskFilter{}); err != nil {
			return models.Dashboard{}, err
		}
		if d.PendingApprovals, err = count(storage.TaskFilter{Statuses: []models.TaskStatus{models.SubmittedTaskStatus}}); err != nil {
			return models.Dashboard{}, err
		}
	case models.AssigneeRole:
		if d.MyTasks, err = count(storage.TaskFilter{AssigneeID: actor.ID}); err != nil {
			return models.Dashboard{}, err
		}
		if d.CompletedTasks, err = count(storage.TaskFilter{
			AssigneeID: actor.ID,
			Statuses:   []models.TaskStatus{models.ApprovedTaskStatus, models.RejectedTaskStatus},
		}); err != nil {
			return models.Dashboard{}, err
		}
		if d.PendingTasks, err = count(storage.TaskFilter{
			AssigneeID: actor.ID,
			Statuses:   []models.TaskStatus{models.NotStartedTaskStatus, models.InProgressTaskStatus},
		}); err != nil {
			return models.Dashboard{}, err
		}
	case models.ApproverRole:
		if d.PendingApprovals, err = count(storage.TaskFilter{
			ApproverID: actor.ID,
			Statuses:   []models.TaskStatus{models.SubmittedTaskStatus},
		}); err != nil {
			return models.Dashboard{}, err
		}
		if d.ApprovedTasks, err = count(storage.TaskFilter{
			ApproverID: actor.ID,
			Statuses:   []models.TaskStatus{models.ApprovedTaskStatus},
		}); err != nil {
			return models.Dashboard{}, err
		}
		if d.RejectedTasks, err = count(storage.TaskFilter{
			ApproverID: actor.ID,
			Statuses:   []models.TaskStatus{models.RejectedTaskStatus},
		}); err != nil {
			return models.Dashboard{}, err
		}
	}
	return d, nil
}
