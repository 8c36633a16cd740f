package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveUser creates a new user; a duplicate email maps to storage.ErrConflict.
func (s *PostgresStore) SaveUser(u models.User) error {
	_, err := s.db.Exec("INSERT INTO users (id, email, name, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(id string) (models.User, error) {
	var u models.User
	err := s.db.Get(&u, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(email string) (models.User, error) {
	var u models.User
	err := s.db.Get(&u, "SELECT * FROM users WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *PostgresStore) ListUsers() ([]models.User, error) {
	users := []models.User{}
	err := s.db.Select(&users, "SELECT * FROM users ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *PostgresStore) SaveWorkflow(w models.Workflow) error {
	_, err := s.db.Exec("INSERT INTO workflows (id, name, description, created_by, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		w.ID, w.Name, w.Description, w.CreatedBy, w.IsActive, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkflow(id string) (models.Workflow, error) {
	var wf models.Workflow
	err := s.db.Get(&wf, "SELECT * FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, err
	}
	return wf, nil
}

func (s *PostgresStore) ListWorkflows() ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	err := s.db.Select(&workflows, "SELECT * FROM workflows ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *PostgresStore) ListWorkflowsByIDs(ids []string) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	if len(ids) == 0 {
		return workflows, nil
	}
	err := s.db.Select(&workflows, "SELECT * FROM workflows WHERE id = ANY($1) ORDER BY created_at DESC", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *PostgresStore) CountWorkflows() (int, error) {
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(*) FROM workflows"); err != nil {
		return 0, err
	}
	return n, nil
}

// transitionRow mirrors the task_transitions table; target ids live in a text
// array column.
type transitionRow struct {
	ID            string         `db:"id"`
	TaskID        string         `db:"task_id"`
	Type          string         `db:"transition_type"`
	TargetTaskIDs pq.StringArray `db:"target_task_ids"`
	IsAutomatic   bool           `db:"is_automatic"`
	Position      int            `db:"position"`
}

// SaveTask creates a task together with its transition rules.
func (s *PostgresStore) SaveTask(t models.Task) error {
	_, err := s.db.Exec("INSERT INTO tasks (id, workflow_id, title, description, deadline, assignee_id, approver_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		t.ID, t.WorkflowID, t.Title, t.Description, t.Deadline, t.AssigneeID, t.ApproverID, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	for i, tr := range t.Transitions {
		_, err := s.db.Exec("INSERT INTO task_transitions (id, task_id, transition_type, target_task_ids, is_automatic, position) VALUES ($1, $2, $3, $4, $5, $6)",
			tr.ID, t.ID, tr.Type, pq.Array(tr.TargetTaskIDs), tr.IsAutomatic, i)
		if err != nil {
			return fmt.Errorf("save transition %s for task %s: %w", tr.ID, t.ID, err)
		}
	}
	return nil
}

// GetTask retrieves a task with its transition rules in insertion order.
func (s *PostgresStore) GetTask(id string) (models.Task, error) {
	var task models.Task
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	if err := s.attachTransitions(&task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *PostgresStore) attachTransitions(t *models.Task) error {
	var rows []transitionRow
	err := s.db.Select(&rows, "SELECT * FROM task_transitions WHERE task_id = $1 ORDER BY position", t.ID)
	if err != nil {
		return fmt.Errorf("get transitions for task %s: %w", t.ID, err)
	}
	t.Transitions = make([]models.TaskTransition, 0, len(rows))
	for _, r := range rows {
		t.Transitions = append(t.Transitions, models.TaskTransition{
			ID:            r.ID,
			TaskID:        r.TaskID,
			Type:          models.TransitionType(r.Type),
			TargetTaskIDs: r.TargetTaskIDs,
			IsAutomatic:   r.IsAutomatic,
		})
	}
	return nil
}

func (s *PostgresStore) ListTasks(f storage.TaskFilter) ([]models.Task, error) {
	query, args := buildTaskQuery("SELECT *", f)
	tasks := []models.Task{}
	if err := s.db.Select(&tasks, query+" ORDER BY created_at", args...); err != nil {
		return nil, err
	}
	for i := range tasks {
		if err := s.attachTransitions(&tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *PostgresStore) CountTasks(f storage.TaskFilter) (int, error) {
	query, args := buildTaskQuery("SELECT COUNT(*)", f)
	var n int
	if err := s.db.Get(&n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

func buildTaskQuery(sel string, f storage.TaskFilter) (string, []interface{}) {
	query := sel + " FROM tasks WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.WorkflowID != "" {
		query += " AND workflow_id = " + arg(f.WorkflowID)
	}
	if f.AssigneeID != "" {
		query += " AND assignee_id = " + arg(f.AssigneeID)
	}
	if f.ApproverID != "" {
		query += " AND approver_id = " + arg(f.ApproverID)
	}
	if f.PartyID != "" {
		p := arg(f.PartyID)
		query += fmt.Sprintf(" AND (assignee_id = %s OR approver_id = %s)", p, p)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		query += " AND status = ANY(" + arg(pq.Array(statuses)) + ")"
	}
	return query, args
}

// UpdateTaskStatus overwrites the status and update timestamp; it is a no-op
// when the task does not exist, matching the engine's logged-skip behavior.
func (s *PostgresStore) UpdateTaskStatus(id string, status models.TaskStatus, updatedAt time.Time) error {
	res, err := s.db.Exec("UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3", status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveSubmission(sub models.Submission) error {
	_, err := s.db.Exec("INSERT INTO submissions (id, task_id, assignee_id, content, submitted_at) VALUES ($1, $2, $3, $4, $5)",
		sub.ID, sub.TaskID, sub.AssigneeID, sub.Content, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save submission %s: %w", sub.ID, err)
	}
	return nil
}

// LatestSubmission returns the most recent submission for a task by
// submission timestamp.
func (s *PostgresStore) LatestSubmission(taskID string) (models.Submission, error) {
	var sub models.Submission
	err := s.db.Get(&sub, "SELECT * FROM submissions WHERE task_id = $1 ORDER BY submitted_at DESC LIMIT 1", taskID)
	if err == sql.ErrNoRows {
		return models.Submission{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

func (s *PostgresStore) ListSubmissions(taskID string) ([]models.Submission, error) {
	subs := []models.Submission{}
	err := s.db.Select(&subs, "SELECT * FROM submissions WHERE task_id = $1 ORDER BY submitted_at", taskID)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *PostgresStore) SaveApproval(a models.Approval) error {
	_, err := s.db.Exec("INSERT INTO approvals (id, task_id, submission_id, approver_id, decision, comments, approved_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		a.ID, a.TaskID, a.SubmissionID, a.ApproverID, a.Decision, a.Comments, a.ApprovedAt)
	if err != nil {
		return fmt.Errorf("save approval %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListApprovals(taskID string) ([]models.Approval, error) {
	approvals := []models.Approval{}
	err := s.db.Select(&approvals, "SELECT * FROM approvals WHERE task_id = $1 ORDER BY approved_at", taskID)
	if err != nil {
		return nil, err
	}
	return approvals, nil
}

func (s *PostgresStore) SaveComment(c models.Comment) error {
	_, err := s.db.Exec("INSERT INTO comments (id, task_id, user_id, content, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.TaskID, c.UserID, c.Content, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListComments(taskID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.Select(&comments, "SELECT * FROM comments WHERE task_id = $1 ORDER BY created_at", taskID)
	if err != nil {
		return nil, err
	}
	return comments, nil
}
