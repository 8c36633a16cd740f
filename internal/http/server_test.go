package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkov/approvalflow/internal/auth"
	internal_http "github.com/dmarkov/approvalflow/internal/http"
	"github.com/dmarkov/approvalflow/internal/log"
	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/service"
	"github.com/dmarkov/approvalflow/pkg/storage"
)

type testEnv struct {
	srv    *httptest.Server
	tokens map[string]string // email -> bearer token
	users  map[string]models.User
}

func newTestEnv(t *testing.T) *testEnv {
	store := storage.NewMockStore()
	logger := log.GetLogger()
	engine := service.NewTransitionEngine(store, service.LogNotifier{Logger: logger}, logger)
	srv := internal_http.NewServer(
		auth.NewService(store, "test-secret"),
		service.NewWorkflowService(store, logger),
		service.NewTaskService(store, engine, logger),
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{
		srv:    ts,
		tokens: make(map[string]string),
		users:  make(map[string]models.User),
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) register(t *testing.T, email string, role models.Role) models.User {
	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email":    email,
		"name":     email,
		"password": "password1",
		"role":     role,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var user models.User
	require.NoError(t, json.Unmarshal(body, &user))
	e.users[email] = user

	resp, body = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var token auth.Token
	require.NoError(t, json.Unmarshal(body, &token))
	e.tokens[email] = token.AccessToken
	return user
}

func (e *testEnv) taskStatus(t *testing.T, token, taskID string) models.TaskStatus {
	resp, body := e.do(t, http.MethodGet, "/api/tasks/"+taskID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var task models.Task
	require.NoError(t, json.Unmarshal(body, &task))
	return task.Status
}

func TestServer(t *testing.T) {
	t.Run("HealthCheck", func(t *testing.T) {
		env := newTestEnv(t)
		resp, err := env.srv.Client().Get(env.srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "approvalflow server is running", string(body))
	})

	t.Run("AuthRequired", func(t *testing.T) {
		env := newTestEnv(t)
		resp, _ := env.do(t, http.MethodGet, "/api/tasks", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = env.do(t, http.MethodGet, "/api/tasks", "garbage-token", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("DuplicateRegistrationConflicts", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		resp, _ := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"email":    "admin@example.com",
			"name":     "again",
			"password": "password1",
			"role":     models.AdminRole,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("InvalidInputIsBadRequest", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)

		resp, _ := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"email":    "x@example.com",
			"name":     "x",
			"password": "password1",
			"role":     "superuser",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		// Malformed body maps to 400, not 500.
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/workflows", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+env.tokens["admin@example.com"])
		raw, err := env.srv.Client().Do(req)
		require.NoError(t, err)
		defer raw.Body.Close()
		assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
	})

	t.Run("BadLogin", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WorkflowCreationAdminOnly", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		env.register(t, "assignee@example.com", models.AssigneeRole)

		resp, _ := env.do(t, http.MethodPost, "/api/workflows", env.tokens["assignee@example.com"], map[string]string{
			"name": "nope",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body := env.do(t, http.MethodPost, "/api/workflows", env.tokens["admin@example.com"], map[string]string{
			"name":        "release",
			"description": "release process",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var wf models.Workflow
		require.NoError(t, json.Unmarshal(body, &wf))
		assert.Equal(t, "release", wf.Name)
		assert.True(t, wf.IsActive)
	})

	t.Run("ApprovalCascade", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		assignee := env.register(t, "assignee@example.com", models.AssigneeRole)
		approver := env.register(t, "approver@example.com", models.ApproverRole)
		adminTok := env.tokens["admin@example.com"]
		assigneeTok := env.tokens["assignee@example.com"]
		approverTok := env.tokens["approver@example.com"]

		resp, body := env.do(t, http.MethodPost, "/api/workflows", adminTok, map[string]string{"name": "release"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var wf models.Workflow
		require.NoError(t, json.Unmarshal(body, &wf))

		createTask := func(title string, transitions []map[string]interface{}) models.Task {
			payload := map[string]interface{}{
				"title":       title,
				"description": "d",
				"assignee_id": assignee.ID,
				"approver_id": approver.ID,
			}
			if transitions != nil {
				payload["transitions"] = transitions
			}
			resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/workflows/%s/tasks", wf.ID), adminTok, payload)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var task models.Task
			require.NoError(t, json.Unmarshal(body, &task))
			return task
		}

		taskB := createTask("B", nil)
		taskC := createTask("C", nil)
		// The approved rule omits is_automatic: the wire default is automatic
		// and it must still fire.
		taskA := createTask("A", []map[string]interface{}{
			{"transition_type": "approved", "target_task_ids": []string{taskB.ID}},
			{"transition_type": "rejected", "target_task_ids": []string{taskC.ID}, "is_automatic": true},
		})
		require.Len(t, taskA.Transitions, 2)
		assert.True(t, taskA.Transitions[0].IsAutomatic)

		// Mark targets in progress so the engine reset is visible.
		for _, id := range []string{taskB.ID, taskC.ID} {
			resp, body := env.do(t, http.MethodPut, "/api/tasks/"+id+"/status", adminTok, map[string]string{"status": "in_progress"})
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		}

		// Approving before any submission is an invalid state.
		resp, _ = env.do(t, http.MethodPost, "/api/tasks/"+taskA.ID+"/approve", approverTok, map[string]string{"decision": "approved"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		// Only the designated assignee may submit.
		resp, _ = env.do(t, http.MethodPost, "/api/tasks/"+taskA.ID+"/submit", approverTok, map[string]string{"content": "w"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body = env.do(t, http.MethodPost, "/api/tasks/"+taskA.ID+"/submit", assigneeTok, map[string]string{"content": "done"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var sub models.Submission
		require.NoError(t, json.Unmarshal(body, &sub))
		assert.Equal(t, "done", sub.Content)

		resp, body = env.do(t, http.MethodPost, "/api/tasks/"+taskA.ID+"/approve", approverTok, map[string]string{
			"decision": "approved",
			"comments": "ship it",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var approval models.Approval
		require.NoError(t, json.Unmarshal(body, &approval))
		assert.Equal(t, sub.ID, approval.SubmissionID)

		// The cascade is asynchronous; poll for the reset.
		assert.Eventually(t, func() bool {
			return env.taskStatus(t, adminTok, taskB.ID) == models.NotStartedTaskStatus
		}, 2*time.Second, 20*time.Millisecond)

		assert.Equal(t, models.ApprovedTaskStatus, env.taskStatus(t, adminTok, taskA.ID))
		assert.Equal(t, models.InProgressTaskStatus, env.taskStatus(t, adminTok, taskC.ID))
	})

	t.Run("RoleScopedTaskListing", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		assignee := env.register(t, "assignee@example.com", models.AssigneeRole)
		approver := env.register(t, "approver@example.com", models.ApproverRole)
		env.register(t, "outsider@example.com", models.AssigneeRole)
		adminTok := env.tokens["admin@example.com"]

		resp, body := env.do(t, http.MethodPost, "/api/workflows", adminTok, map[string]string{"name": "wf"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var wf models.Workflow
		require.NoError(t, json.Unmarshal(body, &wf))

		resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/workflows/%s/tasks", wf.ID), adminTok, map[string]interface{}{
			"title":       "t",
			"assignee_id": assignee.ID,
			"approver_id": approver.ID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var task models.Task
		require.NoError(t, json.Unmarshal(body, &task))

		listLen := func(token string) int {
			resp, body := env.do(t, http.MethodGet, "/api/tasks", token, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var tasks []models.Task
			require.NoError(t, json.Unmarshal(body, &tasks))
			return len(tasks)
		}
		assert.Equal(t, 1, listLen(adminTok))
		assert.Equal(t, 1, listLen(env.tokens["assignee@example.com"]))
		assert.Equal(t, 1, listLen(env.tokens["approver@example.com"]))
		assert.Equal(t, 0, listLen(env.tokens["outsider@example.com"]))

		// Outsiders cannot read the task directly either.
		resp, _ = env.do(t, http.MethodGet, "/api/tasks/"+task.ID, env.tokens["outsider@example.com"], nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		// Unknown task id is a 404 for a viewer who is allowed everything.
		resp, _ = env.do(t, http.MethodGet, "/api/tasks/does-not-exist", adminTok, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("DashboardShapes", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		env.register(t, "assignee@example.com", models.AssigneeRole)

		resp, body := env.do(t, http.MethodGet, "/api/dashboard", env.tokens["admin@example.com"], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var adminDash map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &adminDash))
		assert.Equal(t, "admin", adminDash["role"])
		assert.Contains(t, adminDash, "total_workflows")
		assert.NotContains(t, adminDash, "my_tasks")

		resp, body = env.do(t, http.MethodGet, "/api/dashboard", env.tokens["assignee@example.com"], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var assigneeDash map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &assigneeDash))
		assert.Equal(t, "assignee", assigneeDash["role"])
		assert.Contains(t, assigneeDash, "my_tasks")
		assert.NotContains(t, assigneeDash, "total_workflows")
	})

	t.Run("CommentsRoundTrip", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		assignee := env.register(t, "assignee@example.com", models.AssigneeRole)
		approver := env.register(t, "approver@example.com", models.ApproverRole)
		adminTok := env.tokens["admin@example.com"]

		resp, body := env.do(t, http.MethodPost, "/api/workflows", adminTok, map[string]string{"name": "wf"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var wf models.Workflow
		require.NoError(t, json.Unmarshal(body, &wf))

		resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/workflows/%s/tasks", wf.ID), adminTok, map[string]interface{}{
			"title":       "t",
			"assignee_id": assignee.ID,
			"approver_id": approver.ID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var task models.Task
		require.NoError(t, json.Unmarshal(body, &task))

		resp, body = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/comments", env.tokens["approver@example.com"], map[string]string{
			"content": "needs tests",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		resp, body = env.do(t, http.MethodGet, "/api/tasks/"+task.ID+"/comments", adminTok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var comments []models.Comment
		require.NoError(t, json.Unmarshal(body, &comments))
		require.Len(t, comments, 1)
		assert.Equal(t, "needs tests", comments[0].Content)
	})

	t.Run("UsersEndpointAdminOnly", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "admin@example.com", models.AdminRole)
		env.register(t, "assignee@example.com", models.AssigneeRole)

		resp, body := env.do(t, http.MethodGet, "/api/users", env.tokens["admin@example.com"], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var users []models.User
		require.NoError(t, json.Unmarshal(body, &users))
		assert.Len(t, users, 2)

		resp, _ = env.do(t, http.MethodGet, "/api/users", env.tokens["assignee@example.com"], nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
