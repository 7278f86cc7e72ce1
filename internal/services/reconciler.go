package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fincore/internal/core"
	"fincore/internal/ledger"
	"fincore/internal/log"
	"fincore/internal/metrics"
)

// ReconcileReport is the outcome of one reconciliation pass.
type ReconcileReport struct {
	CheckedAt time.Time        `json:"checked_at"`
	Drifts    []core.FundDrift `json:"drifts"`
	Repaired  int              `json:"repaired"`
}

// Reconciler checks that every fund balance equals the sum of its ledger.
type Reconciler struct {
	store       ledger.Reconciler
	invalidator Invalidator
	metrics     *metrics.Metrics
	logger      *log.Logger
}

func NewReconciler(store ledger.Reconciler, invalidator Invalidator, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		store:       store,
		invalidator: invalidator,
		metrics:     m,
		logger:      log.Default(log.ComponentReconcile),
	}
}

// Check lists drifted funds without changing anything.
func (r *Reconciler) Check(ctx context.Context) (ReconcileReport, error) {
	drifts, err := r.store.LedgerDrifts(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("check ledger: %w", err)
	}
	r.metrics.SetLedgerDrifts(len(drifts))
	for _, d := range drifts {
		r.logger.WarnContext(ctx, "Fund balance disagrees with ledger",
			log.FieldFundID, d.FundID,
			log.FieldProjectID, d.ProjectID,
			log.FieldFundCode, d.Code,
			"balance_cents", d.Balance.Cents,
			"ledger_cents", d.LedgerBalance.Cents)
	}
	return ReconcileReport{CheckedAt: time.Now().UTC(), Drifts: drifts}, nil
}

// Repair resets each drifted balance to its ledger sum. Funds that fail
// are reported together; the others are still repaired.
func (r *Reconciler) Repair(ctx context.Context) (ReconcileReport, error) {
	report, err := r.Check(ctx)
	if err != nil {
		return report, err
	}
	var errs []error
	for _, d := range report.Drifts {
		if _, err := r.store.RecomputeBalance(ctx, d.FundID); err != nil {
			errs = append(errs, fmt.Errorf("fund %s: %w", d.FundID, err))
			continue
		}
		report.Repaired++
	}
	if report.Repaired > 0 {
		if r.invalidator != nil {
			r.invalidator.Invalidate()
		}
		r.metrics.SetLedgerDrifts(len(report.Drifts) - report.Repaired)
		r.logger.InfoContext(ctx, "Fund balances repaired", "repaired", report.Repaired)
	}
	return report, errors.Join(errs...)
}

// Run checks, and repairs too when repair is set.
func (r *Reconciler) Run(ctx context.Context, repair bool) (ReconcileReport, error) {
	if repair {
		return r.Repair(ctx)
	}
	return r.Check(ctx)
}
