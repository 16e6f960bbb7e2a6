// Package api exposes resolution over HTTP for server deployments.
//
// Endpoints:
//
//	GET  /healthz                  liveness probe
//	POST /v1/resolve               resolve root atoms into a plan
//	GET  /v1/plans                 list stored plans
//	GET  /v1/plans/{id}            fetch a stored plan
//	GET  /v1/plans/{id}/graph      plan dependency graph (DOT or SVG)
//	DELETE /v1/plans/{id}          delete a stored plan
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/keelpm/keel/pkg/errors"
	"github.com/keelpm/keel/pkg/repo"
	"github.com/keelpm/keel/pkg/resolver"
	"github.com/keelpm/keel/pkg/store"
)

// Server holds the dependencies of the HTTP API.
type Server struct {
	src      repo.Source
	store    store.Store
	logger   *log.Logger
	maxSteps int
}

// NewServer creates an API server over the given candidate source.
// The store may be nil, in which case plans are returned but not persisted
// and the /v1/plans endpoints report 404.
func NewServer(src repo.Source, st store.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{src: src, store: st, logger: logger}
}

// WithMaxSteps caps the resolver's traversal steps per request.
func (s *Server) WithMaxSteps(n int) *Server {
	s.maxSteps = n
	return s
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Get("/plans", s.handleListPlans)
		r.Get("/plans/{id}", s.handleGetPlan)
		r.Get("/plans/{id}/graph", s.handlePlanGraph)
		r.Delete("/plans/{id}", s.handleDeletePlan)
	})
	return r
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Atom    string `json:"atom,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

// writeError maps an error onto a status code and JSON body. Resolution
// failures carry the failing atom so clients can report it precisely.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Code: string(errors.ErrCodeInternal), Message: errors.UserMessage(err)}
	status := http.StatusInternalServerError

	var noSol *resolver.NoSolutionError
	switch {
	case stderrors.As(err, &noSol):
		status = http.StatusUnprocessableEntity
		resp.Code = string(errors.ErrCodeNoSolution)
		resp.Atom = noSol.Atom.String()
		resp.Reason = noSol.Reason
	case errors.Is(err, errors.ErrCodePlanNotFound),
		errors.Is(err, errors.ErrCodeNotFound):
		status = http.StatusNotFound
		resp.Code = string(errors.GetCode(err))
	case errors.Is(err, errors.ErrCodeInvalidAtom),
		errors.Is(err, errors.ErrCodeInvalidInput),
		errors.Is(err, errors.ErrCodeInvalidPlan):
		status = http.StatusBadRequest
		resp.Code = string(errors.GetCode(err))
	case errors.Is(err, errors.ErrCodeNetwork),
		errors.Is(err, errors.ErrCodeTimeout):
		status = http.StatusBadGateway
		resp.Code = string(errors.GetCode(err))
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
