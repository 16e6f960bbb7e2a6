package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/errors"
	"github.com/keelpm/keel/pkg/render"
	"github.com/keelpm/keel/pkg/solve"
)

// resolveRequest is the body of POST /v1/resolve.
type resolveRequest struct {
	Roots []string `json:"roots"`

	// Save persists the resulting plan when a store is configured.
	Save bool `json:"save,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse request body"))
		return
	}
	if len(req.Roots) == 0 {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "roots must not be empty"))
		return
	}

	roots, err := atom.ParseAll(req.Roots)
	if err != nil {
		s.writeError(w, err)
		return
	}

	runner := solve.NewRunner(s.src, s.logger)
	if s.maxSteps > 0 {
		runner = runner.WithMaxSteps(s.maxSteps)
	}
	plan, err := runner.Resolve(r.Context(), roots)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.Save && s.store != nil {
		if err := s.store.Save(r.Context(), plan); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "no plan store configured"))
		return
	}
	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"plans": summaries})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handlePlanGraph(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loadPlan(w, r)
	if !ok {
		return
	}

	opts := render.Options{Detailed: r.URL.Query().Get("detailed") == "true"}
	dot := render.ToDOT(plan, opts)

	switch format := r.URL.Query().Get("format"); format {
	case "", "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(dot))
	case "svg":
		svg, err := render.RenderSVG(r.Context(), dot)
		if err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "render svg"))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(svg)
	default:
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "unknown graph format %q", format))
	}
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "no plan store configured"))
		return
	}
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadPlan(w http.ResponseWriter, r *http.Request) (*solve.Plan, bool) {
	if s.store == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "no plan store configured"))
		return nil, false
	}
	plan, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return plan, true
}
