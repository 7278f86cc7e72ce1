package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/amqp"
	"fincore/internal/core"
	"fincore/internal/ledger/memory"
	"fincore/internal/metrics"
	"fincore/internal/services"
	sheetsmem "fincore/internal/sheets/memory"
)

func distributedStore(t *testing.T) (*memory.Store, *amqp.DistributionMessage) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateProject(ctx, core.Project{ID: "p1", OwnerID: "acc"}))
	require.NoError(t, store.CreatePayment(ctx, core.Payment{
		ID: "pay-1", ProjectID: "p1", Amount: core.NewMoney(1000_00),
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}))
	res, err := services.NewDistributor(store, services.NewPlanResolver(store)).
		Distribute(ctx, services.DistributionRequest{PaymentID: "pay-1"})
	require.NoError(t, err)
	msg := amqp.NewDistributionMessage(res.PaymentID, res.ProjectID, res.DistributedAmount.Cents, res.Currency, len(res.Transactions))
	return store, msg
}

func TestMirrorWorkerWritesOnce(t *testing.T) {
	store, msg := distributedStore(t)
	writer := sheetsmem.New()
	m := metrics.New()
	w := NewMirrorWorker(store, writer, m)

	require.NoError(t, w.HandleDistribution(context.Background(), msg))
	require.NoError(t, w.HandleDistribution(context.Background(), msg))

	assert.Len(t, writer.Rows(), 6)
	mirrored, err := store.MirroredCount(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, 6, mirrored)
}

func TestMirrorWorkerAppendsRepeatedDistribution(t *testing.T) {
	ctx := context.Background()
	store, first := distributedStore(t)
	writer := sheetsmem.New()
	w := NewMirrorWorker(store, writer, nil)
	require.NoError(t, w.HandleDistribution(ctx, first))

	res, err := services.NewDistributor(store, services.NewPlanResolver(store)).
		Distribute(ctx, services.DistributionRequest{PaymentID: "pay-1", Plan: core.NewPlan("extra", 100)})
	require.NoError(t, err)
	second := amqp.NewDistributionMessage(res.PaymentID, res.ProjectID, res.DistributedAmount.Cents, res.Currency, len(res.Transactions))

	require.NoError(t, w.HandleDistribution(ctx, second))
	require.NoError(t, w.HandleDistribution(ctx, second))

	rows := writer.Rows()
	require.Len(t, rows, 7)
	assert.Equal(t, res.Transactions[0].FundID, rows[6][3])
	mirrored, err := store.MirroredCount(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, 7, mirrored)
}

func TestMirrorWorkerRetriesAfterSheetFailure(t *testing.T) {
	store, msg := distributedStore(t)
	writer := sheetsmem.New()
	writer.FailWith(errors.New("quota exceeded"))
	w := NewMirrorWorker(store, writer, nil)

	err := w.HandleDistribution(context.Background(), msg)
	require.Error(t, err)
	mirrored, err := store.MirroredCount(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Zero(t, mirrored)

	writer.FailWith(nil)
	require.NoError(t, w.HandleDistribution(context.Background(), msg))
	assert.Len(t, writer.Rows(), 6)
}

func TestMirrorWorkerStoreFailure(t *testing.T) {
	store, msg := distributedStore(t)
	require.NoError(t, store.Close())
	writer := sheetsmem.New()

	err := NewMirrorWorker(store, writer, nil).HandleDistribution(context.Background(), msg)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Empty(t, writer.Rows())
}
