package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/tendergraph/internal/idgen"
	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/projects", s.handleListProjects)
	mux.HandleFunc("POST /v1/projects", s.handleCreateProject)
	mux.HandleFunc("GET /v1/projects/{project}", s.handleGetProject)
	mux.HandleFunc("DELETE /v1/projects/{project}", s.handleDeleteProject)
	mux.HandleFunc("GET /v1/projects/{project}/graph", s.handleGetGraph)
	mux.HandleFunc("GET /v1/projects/{project}/graph/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/projects/{project}/graph/critical-path", s.handleGetCriticalPath)
	mux.HandleFunc("GET /v1/projects/{project}/todos", s.handleGetTodos)
	mux.HandleFunc("GET /v1/projects/{project}/todos/critical", s.handleGetCritical)
	mux.HandleFunc("GET /v1/projects/{project}/todos/actionable", s.handleGetActionable)
	mux.HandleFunc("GET /v1/projects/{project}/todos/deadlines", s.handleGetDeadlines)
	mux.HandleFunc("GET /v1/projects/{project}/todos/export", s.handleExportTodos)
	mux.HandleFunc("PUT /v1/projects/{project}/todos/{node}/complete", s.handleCompleteTodo)
	mux.HandleFunc("GET /v1/projects/{project}/nodes", s.handleSearchNodes)
	mux.HandleFunc("PUT /v1/projects/{project}/nodes/{node}/status", s.handleUpdateStatus)
	mux.HandleFunc("PUT /v1/projects/{project}/nodes/{node}/condition", s.handleSetCondition)
	mux.HandleFunc("POST /v1/projects/{project}/nodes/merge", s.handleMergeNodes)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
		mux.Handle("/mcp/", s.mcp)
	}
	return RequestLogger(s.logger, AuthMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// createProjectRequest is the POST /v1/projects body. A missing id is
// generated when a name is given.
type createProjectRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Directory string `json:"directory"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" && req.Name != "" {
		req.ID = idgen.ProjectID()
	}
	p, err := s.svc.EnsureProject(r.Context(), req.ID, req.Name, req.Directory)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProject(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), r.PathValue("project")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Graph(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Data())
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetCriticalPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.CriticalPath(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if path == nil {
		path = []model.CriticalNode{}
	}
	writeJSON(w, http.StatusOK, path)
}

type todosResponse struct {
	Categories []*todo.Category `json:"categories"`
	Summary    *todo.Summary    `json:"summary"`
}

// handleGetTodos handles GET .../todos. With ?where=<CEL> it returns the
// matching items instead of the categorized list.
func (s *Server) handleGetTodos(w http.ResponseWriter, r *http.Request) {
	gen, err := s.svc.Todos(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if where := r.URL.Query().Get("where"); where != "" {
		items, err := gen.Filter(where)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeItems(w, items)
		return
	}
	writeJSON(w, http.StatusOK, todosResponse{Categories: gen.Generate(), Summary: gen.Summary()})
}

func (s *Server) handleGetCritical(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, (*todo.Generator).CriticalItems)
}

func (s *Server) handleGetActionable(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, (*todo.Generator).ActionableNow)
}

func (s *Server) handleGetDeadlines(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, (*todo.Generator).ByDeadline)
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, view func(*todo.Generator) []*todo.Item) {
	gen, err := s.svc.Todos(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeItems(w, view(gen))
}

// handleExportTodos handles GET .../todos/export?format=markdown|html.
func (s *Server) handleExportTodos(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	report, err := s.svc.Report(r.Context(), r.PathValue("project"), format)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	ct := "text/markdown; charset=utf-8"
	if format == project.FormatHTML {
		ct = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

func (s *Server) handleCompleteTodo(w http.ResponseWriter, r *http.Request) {
	change, err := s.svc.Complete(r.Context(), r.PathValue("project"), r.PathValue("node"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// handleSearchNodes handles GET .../nodes?q=term.
func (s *Server) handleSearchNodes(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Graph(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	nodes := g.Nodes()
	if q := r.URL.Query().Get("q"); q != "" {
		nodes = g.FindNodes(q)
	}
	if nodes == nil {
		nodes = []*model.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	change, err := s.svc.UpdateStatus(r.Context(), r.PathValue("project"), r.PathValue("node"), model.Status(req.Status))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

type setConditionRequest struct {
	// Met is true, false, or null for unknown.
	Met *bool `json:"met"`
}

func (s *Server) handleSetCondition(w http.ResponseWriter, r *http.Request) {
	var req setConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	changed, err := s.svc.SetCondition(r.Context(), r.PathValue("project"), r.PathValue("node"), req.Met)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

type mergeRequest struct {
	KeepID string `json:"keep_id"`
	DropID string `json:"drop_id"`
}

func (s *Server) handleMergeNodes(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.KeepID == "" || req.DropID == "" {
		writeError(w, http.StatusBadRequest, "keep_id and drop_id are required")
		return
	}
	n, err := s.svc.Merge(r.Context(), r.PathValue("project"), req.KeepID, req.DropID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func writeItems(w http.ResponseWriter, items []*todo.Item) {
	if items == nil {
		items = []*todo.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// writeServiceError maps err to a status code; internal errors are logged
// and not echoed.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
