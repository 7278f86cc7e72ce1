package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/config"
	"fincore/internal/core"
	"fincore/internal/ledger/memory"
	"fincore/internal/metrics"
	"fincore/internal/services"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateProject(ctx, core.Project{ID: "p1", OwnerID: "acct", Name: "P1"}))
	require.NoError(t, store.CreatePayment(ctx, core.Payment{
		ID: "pay-1", ProjectID: "p1", Amount: core.NewMoney(1000_00), Currency: "BRL", CreatedAt: time.Now().UTC(),
	}))
	return store
}

func TestNewServicesDistributeInvalidatesCachedSummary(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{SummaryCacheTTL: time.Minute, SummaryCacheSize: 8, RecentTransactionsLimit: 10}
	svc := NewServices(seededStore(t), cfg, metrics.New(), nil)
	defer svc.Close()

	scope := core.Scope{ProjectID: "p1"}
	before, err := svc.Summaries.Summarize(ctx, scope)
	require.NoError(t, err)
	assert.True(t, before.TotalBalance.IsZero())

	_, err = svc.Distributor.Distribute(ctx, services.DistributionRequest{PaymentID: "pay-1"})
	require.NoError(t, err)

	after, err := svc.Summaries.Summarize(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1000_00), after.TotalBalance.Cents)
	assert.Len(t, after.Funds, 6)

	res, err := svc.Projections.Simulate(ctx, scope, core.SimulationParams{
		Months: 1, RevenuePerMonth: core.NewMoney(0), ExpensesPerMonth: core.NewMoney(500_00),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500_00), res.FinalBalance.Cents)

	report, err := svc.Reconciler.Run(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestNewServicesWithoutCache(t *testing.T) {
	cfg := &config.Config{RecentTransactionsLimit: 10}
	svc := NewServices(seededStore(t), cfg, nil, nil)
	svc.Close()
	svc.Close()
}
