package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/dmarkov/approvalflow/internal/auth"
	"github.com/dmarkov/approvalflow/internal/log"
	"github.com/dmarkov/approvalflow/pkg/service"
	"github.com/dmarkov/approvalflow/pkg/storage"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	auth      *auth.Service
	workflows *service.WorkflowService
	tasks     *service.TaskService
}

func NewServer(authSvc *auth.Service, workflowSvc *service.WorkflowService, taskSvc *service.TaskService) *Server {
	return &Server{
		auth:      authSvc,
		workflows: workflowSvc,
		tasks:     taskSvc,
	}
}

// Router wires the API surface. Everything under /api except register and
// login requires a bearer token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.auth))

			r.Post("/workflows", s.handleCreateWorkflow)
			r.Get("/workflows", s.handleListWorkflows)
			r.Get("/workflows/{workflowID}", s.handleGetWorkflow)
			r.Post("/workflows/{workflowID}/tasks", s.handleCreateTask)

			r.Get("/tasks", s.handleListTasks)
			r.Get("/tasks/{taskID}", s.handleGetTask)
			r.Put("/tasks/{taskID}/status", s.handleUpdateTaskStatus)
			r.Post("/tasks/{taskID}/submit", s.handleSubmitTask)
			r.Get("/tasks/{taskID}/submissions", s.handleListSubmissions)
			r.Post("/tasks/{taskID}/approve", s.handleApproveTask)
			r.Post("/tasks/{taskID}/comments", s.handleAddComment)
			r.Get("/tasks/{taskID}/comments", s.handleListComments)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/users", s.handleListUsers)
		})
	})
	return r
}

// StartServer runs the HTTP server on the given port using a fully wired
// service stack over the store.
func StartServer(port string, store storage.Store, secret string) error {
	logger := log.GetLogger()
	notifier := service.LogNotifier{Logger: logger}
	engine := service.NewTransitionEngine(store, notifier, logger)
	srv := NewServer(
		auth.NewService(store, secret),
		service.NewWorkflowService(store, logger),
		service.NewTaskService(store, engine, logger),
	)
	logger.Infof("Starting approvalflow server on :%s", port)
	return http.ListenAndServe(":"+port, srv.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("approvalflow server is running"))
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps the error taxonomy onto HTTP status codes. Anything the
// services did not classify is an infrastructure fault and surfaces as a 500.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	if status >= http.StatusInternalServerError {
		log.GetLogger().Errorf("Request failed: %v", err)
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(service.ErrInvalidInput, "invalid request body: %v", err)
	}
	return nil
}
