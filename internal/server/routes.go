package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/strata/internal/apperror"
	"github.com/lazypower/strata/internal/engine"
)

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Relation   string         `json:"relation"`
		Properties map[string]any `json:"properties"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Relation == "" {
		s.writeError(w, r, apperror.NewValidation("relation is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.eng.ClassifyMemorySector(req.Relation, req.Properties))
}

func (s *Server) handleDecayConfig(w http.ResponseWriter, r *http.Request) {
	sectors := make(map[string]any)
	for sec, d := range s.eng.DecayConfig() {
		sectors[string(sec)] = d
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":  s.eng.Decay.Source(),
		"sectors": sectors,
	})
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req engine.AddNodeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.eng.AddNode(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, createdStatus(res.Created), res)
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req engine.AddEdgeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.eng.AddEdge(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, createdStatus(res.Created), res)
}

func (s *Server) handleGetEdge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	edge, err := s.eng.GetEdge(r.Context(), engine.EdgeRef{
		SourceName: q.Get("source"),
		TargetName: q.Get("target"),
		Relation:   q.Get("relation"),
		EdgeID:     q.Get("edge_id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (s *Server) handleRelevance(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Relevance(r.Context(), chi.URLParam(r, "edgeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEngage(w http.ResponseWriter, r *http.Request) {
	edge, err := s.eng.EngageEdge(r.Context(), chi.URLParam(r, "edgeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	var req engine.NeighborRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.eng.QueryNeighbors(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"neighbors": out,
		"count":     len(out),
	})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	depth := 0
	if raw := q.Get("max_depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, apperror.NewValidation("max_depth must be an integer"))
			return
		}
		depth = n
	}
	p, err := s.eng.FindPath(r.Context(), q.Get("start"), q.Get("end"), depth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	var req engine.ReclassifyRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.eng.Reclassify(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
