package models

type TransitionType string

const (
	ApprovedTransition TransitionType = "approved"
	RejectedTransition TransitionType = "rejected"
)

// Valid reports whether t is a known transition type.
func (t TransitionType) Valid() bool {
	return t == ApprovedTransition || t == RejectedTransition
}

// TaskTransition is a declarative rule owned by a task: when the task receives
// the matching decision, every target task is reset to not_started. Rules are
// set once at task creation. A rule with IsAutomatic unset is persisted but
// never auto-fired; manual triggering is reserved behavior with no surface yet.
type TaskTransition struct {
	ID            string         `json:"id" db:"id"`
	TaskID        string         `json:"-" db:"task_id"`
	Type          TransitionType `json:"transition_type" db:"transition_type"`
	TargetTaskIDs []string       `json:"target_task_ids" db:"target_task_ids"`
	IsAutomatic   bool           `json:"is_automatic" db:"is_automatic"`
}

// Matches reports whether the rule should fire for the given decision. Every
// matching rule fires; insertion order has no observable effect.
func (tr TaskTransition) Matches(decision Decision) bool {
	return tr.IsAutomatic && string(tr.Type) == string(decision)
}
