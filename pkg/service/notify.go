package service

import "github.com/dmarkov/approvalflow/pkg/models"

// Notifier is the fire-and-forget side-effect sink the transition engine
// informs about activated tasks. Implementations must not block for long;
// errors are logged by the engine and never propagate.
type Notifier interface {
	TaskActivated(task models.Task) error
}

// LogNotifier writes activation notices to the service logger. It stands in
// for a real delivery mechanism (mail, chat webhook) behind the same
// interface.
type LogNotifier struct {
	Logger Logger
}

func (n LogNotifier) TaskActivated(task models.Task) error {
	n.Logger.Infof("Notification: task '%s' assigned to %s", task.Title, task.AssigneeID)
	return nil
}
