package models

import "time"

type Role string

const (
	AdminRole    Role = "admin"
	ApproverRole Role = "approver"
	AssigneeRole Role = "assignee"
)

var validRoles = map[Role]bool{
	AdminRole:    true,
	ApproverRole: true,
	AssigneeRole: true,
}

// Valid reports whether r is one of the fixed role variants.
func (r Role) Valid() bool {
	return validRoles[r]
}

// CanManageWorkflows reports whether the role may create workflows and tasks.
func (r Role) CanManageWorkflows() bool {
	return r == AdminRole
}

// CanSubmitTask reports whether a user with this role may submit the given
// task. Ownership is checked here, not just role membership.
func (r Role) CanSubmitTask(userID string, t Task) bool {
	return r == AssigneeRole && t.AssigneeID == userID
}

// CanDecideTask reports whether a user with this role may approve or reject
// the given task.
func (r Role) CanDecideTask(userID string, t Task) bool {
	return r == ApproverRole && t.ApproverID == userID
}

// CanViewTask reports whether a user with this role may read the given task.
// Admins see everything; the others see only tasks they are a party to.
func (r Role) CanViewTask(userID string, t Task) bool {
	switch r {
	case AdminRole:
		return true
	case AssigneeRole:
		return t.AssigneeID == userID
	case ApproverRole:
		return t.ApproverID == userID
	}
	return false
}

// User is an account record. Password verification and token issuance live in
// the auth collaborator; the core only consumes ID and Role.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
