package http

import (
	"net/http"

	"fincore/internal/core"
	"fincore/internal/log"
	"fincore/internal/services"
)

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req services.DistributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpDistribute, err)
		return
	}
	res, err := s.deps.Distributor.Distribute(r.Context(), req)
	if err != nil {
		s.writeError(w, r, log.OpDistribute, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromRequest(r, "")
	summary, err := s.deps.Summaries.Summarize(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, log.OpSummarize, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromRequest(r, "")
	insights, summary, err := s.deps.Summaries.Insights(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, log.OpInsights, err)
		return
	}
	writeJSON(w, http.StatusOK, insightsBody{Insights: insights, Summary: summary})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpSimulate, err)
		return
	}
	res, err := s.deps.Projections.Simulate(r.Context(), scopeFromRequest(r, req.ProjectID), req.SimulationParams)
	if err != nil {
		s.writeError(w, r, log.OpSimulate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type simulationRequest struct {
	core.SimulationParams
	ProjectID string `json:"project_id"`
}

type insightsBody struct {
	Insights []core.Insight `json:"insights"`
	Summary  core.Summary   `json:"summary"`
}
