package services

import (
	"context"
	"errors"
	"fmt"

	"fincore/internal/core"
	"fincore/internal/ledger"
)

// PlanSource records where a resolved plan came from.
type PlanSource string

const (
	PlanExplicit PlanSource = "explicit"
	PlanRule     PlanSource = "rule"
	PlanDefault  PlanSource = "default"
)

// PlanResolver picks the allocation plan for a distribution: an explicit
// plan wins, then the project's active rule, then core.DefaultPlan.
type PlanResolver struct {
	rules ledger.RuleReader
}

// NewPlanResolver accepts a nil reader, in which case only explicit and
// default plans are used.
func NewPlanResolver(rules ledger.RuleReader) *PlanResolver {
	return &PlanResolver{rules: rules}
}

// Resolve returns a validated plan. An empty explicit plan counts as
// absent. A failing rule lookup is reported, never silently defaulted.
func (r *PlanResolver) Resolve(ctx context.Context, projectID string, explicit core.AllocationPlan) (core.AllocationPlan, PlanSource, error) {
	if len(explicit) > 0 {
		if err := explicit.Validate(); err != nil {
			return nil, "", err
		}
		return explicit, PlanExplicit, nil
	}

	if r.rules != nil {
		rule, err := r.rules.ActiveRule(ctx, projectID)
		switch {
		case err == nil:
			if err := rule.Allocation.Validate(); err != nil {
				return nil, "", fmt.Errorf("active rule for project %s: %w", projectID, err)
			}
			return rule.Allocation, PlanRule, nil
		case errors.Is(err, core.ErrNotFound):
		default:
			return nil, "", core.StorageError("resolve allocation rule", err)
		}
	}

	return core.DefaultPlan(), PlanDefault, nil
}
