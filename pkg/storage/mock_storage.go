package storage

import (
	"sync"
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
)

// mockStore implements Store with in-memory storage. Begin returns the same
// instance; Commit/Rollback are no-ops, which is enough for service-level
// tests where transactional isolation is not under test.
type mockStore struct {
	mu          sync.Mutex
	users       []models.User
	workflows   []models.Workflow
	tasks       []models.Task
	submissions []models.Submission
	approvals   []models.Approval
	comments    []models.Comment
}

// NewMockStore returns an empty in-memory Store.
func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveUser(u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *mockStore) GetUser(id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *mockStore) GetUserByEmail(email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *mockStore) ListUsers() ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.User(nil), m.users...), nil
}

func (m *mockStore) SaveWorkflow(w models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows = append(m.workflows, w)
	return nil
}

func (m *mockStore) GetWorkflow(id string) (models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workflows {
		if w.ID == id {
			return w, nil
		}
	}
	return models.Workflow{}, ErrNotFound
}

func (m *mockStore) ListWorkflows() ([]models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Workflow(nil), m.workflows...), nil
}

func (m *mockStore) ListWorkflowsByIDs(ids []string) ([]models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Workflow
	for _, w := range m.workflows {
		if wanted[w.ID] {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockStore) CountWorkflows() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workflows), nil
}

func (m *mockStore) SaveTask(t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tasks {
		if existing.ID == t.ID {
			return ErrConflict
		}
	}
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *mockStore) GetTask(id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (f TaskFilter) matches(t models.Task) bool {
	if f.WorkflowID != "" && t.WorkflowID != f.WorkflowID {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if f.ApproverID != "" && t.ApproverID != f.ApproverID {
		return false
	}
	if f.PartyID != "" && t.AssigneeID != f.PartyID && t.ApproverID != f.PartyID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *mockStore) ListTasks(f TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) CountTasks(f TaskFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if f.matches(t) {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) UpdateTaskStatus(id string, status models.TaskStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks[i].Status = status
			m.tasks[i].UpdatedAt = updatedAt
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveSubmission(s models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, s)
	return nil
}

func (m *mockStore) LatestSubmission(taskID string) (models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest models.Submission
	found := false
	for _, s := range m.submissions {
		if s.TaskID != taskID {
			continue
		}
		if !found || s.SubmittedAt.After(latest.SubmittedAt) {
			latest = s
			found = true
		}
	}
	if !found {
		return models.Submission{}, ErrNotFound
	}
	return latest, nil
}

func (m *mockStore) ListSubmissions(taskID string) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if s.TaskID == taskID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) SaveApproval(a models.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, a)
	return nil
}

func (m *mockStore) ListApprovals(taskID string) ([]models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Approval
	for _, a := range m.approvals {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) SaveComment(c models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, c)
	return nil
}

func (m *mockStore) ListComments(taskID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}
