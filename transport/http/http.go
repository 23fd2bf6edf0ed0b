// Package http exposes the runtime's query surface over plain net/http:
// a paginated task listing and a health probe. It holds no business
// logic of its own — every request is a thin translation to and from
// agentmesh.TaskStore.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentmesh-go/agentmesh"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Server wraps a TaskStore with the HTTP surface.
type Server struct {
	store  agentmesh.TaskStore
	logger *slog.Logger
}

// New creates a Server backed by store.
func New(store agentmesh.TaskStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Mount registers the surface's routes on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/tasks/query", s.handleTasksQuery)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
}

// NewServer builds a standalone *http.Server serving only this surface,
// for callers that don't need to share a mux with other handlers.
func NewServer(addr string, store agentmesh.TaskStore, logger *slog.Logger) *http.Server {
	s := New(store, logger)
	mux := http.NewServeMux()
	s.Mount(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type tasksQueryRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Status   string `json:"status"`
	TaskName string `json:"task_name"`
}

type taskView struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	SubmitTime int64  `json:"submit_time"`
}

type tasksQueryData struct {
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Tasks    []taskView `json:"tasks"`
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) handleTasksQuery(w http.ResponseWriter, r *http.Request) {
	var req tasksQueryRequest
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Code: http.StatusBadRequest, Message: "invalid request body: " + err.Error()})
			return
		}
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	q := agentmesh.TaskQuery{
		Page:     req.Page,
		PageSize: req.PageSize,
		Status:   agentmesh.TaskStatus(req.Status),
		NameLike: req.TaskName,
	}

	page, err := s.store.Query(r.Context(), q)
	if err != nil {
		s.logger.Error("tasks query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Code: http.StatusInternalServerError, Message: "query failed: " + err.Error()})
		return
	}

	tasks := make([]taskView, 0, len(page.Tasks))
	for _, t := range page.Tasks {
		tasks = append(tasks, taskView{
			TaskID:     t.TaskID,
			Status:     string(t.Status),
			Name:       t.Name,
			Content:    t.Content,
			SubmitTime: t.SubmitTime,
		})
	}

	writeJSON(w, http.StatusOK, envelope{
		Code:    http.StatusOK,
		Message: "ok",
		Data: tasksQueryData{
			Total:    page.Total,
			Page:     page.Page,
			PageSize: page.PageSize,
			Tasks:    tasks,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
