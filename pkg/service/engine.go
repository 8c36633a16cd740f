package service

import (
	"sync"
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/storage"
)

// TransitionEngine evaluates a task's transition rules after an approval
// decision and resets matching target tasks to not_started.
//
// Execution is best-effort and asynchronous relative to the approval
// response: Trigger returns immediately and the cascade runs on its own
// goroutine. Every error along the way is logged and swallowed; a recorded
// approval is never rolled back because a downstream activation failed, and
// failed activations are not retried.
type TransitionEngine struct {
	store    storage.Store
	notifier Notifier
	logger   Logger
	wg       sync.WaitGroup
}

func NewTransitionEngine(store storage.Store, notifier Notifier, logger Logger) *TransitionEngine {
	return &TransitionEngine{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Trigger schedules rule evaluation for the task that just received the
// decision. Callers observe cascaded activation by polling task status.
func (e *TransitionEngine) Trigger(taskID string, decision models.Decision) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Errorf("Transition engine panic for task %s: %v", taskID, r)
			}
		}()
		e.run(taskID, decision)
	}()
}

// Wait blocks until all scheduled cascades have finished. Used at shutdown
// and by tests.
func (e *TransitionEngine) Wait() {
	e.wg.Wait()
}

func (e *TransitionEngine) run(taskID string, decision models.Decision) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		// The approval response has already been sent; nothing to surface.
		e.logger.Errorf("Transition engine: deciding task %s not loadable: %v", taskID, err)
		return
	}

	for _, rule := range task.Transitions {
		if !rule.Matches(decision) {
			continue
		}
		for _, targetID := range rule.TargetTaskIDs {
			e.activate(targetID)
		}
	}
	e.logger.Infof("Task transitions triggered for task %s with decision %s", taskID, decision)
}

// activate resets one target task to not_started regardless of its current
// status. Prior submissions and approvals are retained for audit.
func (e *TransitionEngine) activate(targetID string) {
	if err := e.store.UpdateTaskStatus(targetID, models.NotStartedTaskStatus, time.Now().UTC()); err != nil {
		// Missing or failing targets are skipped, not retried.
		e.logger.Warnf("Transition engine: skipping target task %s: %v", targetID, err)
		return
	}
	target, err := e.store.GetTask(targetID)
	if err != nil {
		e.logger.Warnf("Transition engine: activated task %s but could not load it for notification: %v", targetID, err)
		return
	}
	if err := e.notifier.TaskActivated(target); err != nil {
		e.logger.Errorf("Transition engine: notification for task %s failed: %v", targetID, err)
	}
}
