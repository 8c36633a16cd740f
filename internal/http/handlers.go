package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmarkov/approvalflow/internal/auth"
	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/service"
)

func currentUser(r *http.Request) models.User {
	// Middleware guarantees presence on authenticated routes.
	user, _ := auth.UserFromContext(r.Context())
	return user
}

type registerRequest struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	user, err := s.auth.Register(req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, token)
}

type workflowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	wf, err := s.workflows.CreateWorkflow(currentUser(r), req.Name, req.Description)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.workflows.ListWorkflows(currentUser(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if workflows == nil {
		workflows = []models.Workflow{}
	}
	respondJSON(w, http.StatusOK, workflows)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflows.GetWorkflow(chi.URLParam(r, "workflowID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req service.TaskInput
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	task, err := s.workflows.CreateTask(currentUser(r), chi.URLParam(r, "workflowID"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(currentUser(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.GetTask(currentUser(r), chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.tasks.OverrideStatus(currentUser(r), chi.URLParam(r, "taskID"), req.Status); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Task status updated"})
}

type submitRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	sub, err := s.tasks.Submit(currentUser(r), chi.URLParam(r, "taskID"), req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.tasks.ListSubmissions(currentUser(r), chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	respondJSON(w, http.StatusOK, subs)
}

type approveRequest struct {
	Decision models.Decision `json:"decision"`
	Comments string          `json:"comments"`
}

func (s *Server) handleApproveTask(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	approval, err := s.tasks.Approve(currentUser(r), chi.URLParam(r, "taskID"), req.Decision, req.Comments)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, approval)
}

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	comment, err := s.tasks.AddComment(currentUser(r), chi.URLParam(r, "taskID"), req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.tasks.ListComments(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	respondJSON(w, http.StatusOK, comments)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.tasks.Dashboard(currentUser(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.workflows.ListUsers(currentUser(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondJSON(w, http.StatusOK, users)
}
