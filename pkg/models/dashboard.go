package models

// Dashboard carries role-shaped counters. Only the fields for the viewer's
// role are set; the rest stay nil and are omitted on the wire.
type Dashboard struct {
	Role Role `json:"role"`

	// admin
	TotalWorkflows *int `json:"total_workflows,omitempty"`
	TotalTasks     *int `json:"total_tasks,omitempty"`

	// admin and approver
	PendingApprovals *int `json:"pending_approvals,omitempty"`

	// assignee
	MyTasks        *int `json:"my_tasks,omitempty"`
	CompletedTasks *int `json:"completed_tasks,omitempty"`
	PendingTasks   *int `json:"pending_tasks,omitempty"`

	// approver
	ApprovedTasks *int `json:"approved_tasks,omitempty"`
	RejectedTasks *int `json:"rejected_tasks,omitempty"`
}
