package services

import (
	"context"

	"fincore/internal/core"
	"fincore/internal/log"
	"fincore/internal/metrics"
)

// Summarizer is the slice of SummaryService a projection needs.
type Summarizer interface {
	Summarize(ctx context.Context, scope core.Scope) (core.Summary, error)
}

// ProjectionService runs simulations starting from a scope's live balance.
type ProjectionService struct {
	summaries Summarizer
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewProjectionService(summaries Summarizer, m *metrics.Metrics) *ProjectionService {
	return &ProjectionService{
		summaries: summaries,
		metrics:   m,
		logger:    log.Default(log.ComponentProjection),
	}
}

// Simulate replaces params.StartingBalance with the scope's total balance.
// Parameters are validated before any storage access.
func (p *ProjectionService) Simulate(ctx context.Context, scope core.Scope, params core.SimulationParams) (core.SimulationResult, error) {
	if err := params.Validate(); err != nil {
		return core.SimulationResult{}, err
	}
	summary, err := p.summaries.Summarize(ctx, scope)
	if err != nil {
		return core.SimulationResult{}, err
	}
	params.StartingBalance = summary.TotalBalance

	res, err := core.Simulate(params)
	if err != nil {
		return core.SimulationResult{}, err
	}
	p.metrics.ObserveSimulation(params.Scenario)
	p.logger.DebugContext(ctx, "Simulation complete",
		log.FieldScope, scope.Key(),
		log.FieldScenario, params.Scenario,
		log.FieldMonths, params.Months,
		"final_balance_cents", res.FinalBalance.Cents)
	return res, nil
}
