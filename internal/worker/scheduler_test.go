package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/core"
	"fincore/internal/services"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestSchedulerAddJobRejectsBadSchedule(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.NoError(t, s.AddJob("0 */15 * * * *", &countingJob{}))
}

func TestSchedulerRunNow(t *testing.T) {
	s := NewScheduler()
	job := &countingJob{err: errors.New("boom")}
	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, 1, job.runs)

	s.Start()
	s.Stop()
}

func TestReconcileJobRepairs(t *testing.T) {
	store, _ := distributedStore(t)
	ctx := context.Background()
	funds, err := store.ListFunds(ctx, core.Scope{ProjectID: "p1"})
	require.NoError(t, err)
	_, err = store.IncrementBalance(ctx, funds[0].ID, core.NewMoney(42))
	require.NoError(t, err)

	job := &ReconcileJob{Reconciler: services.NewReconciler(store, nil, nil), Repair: true}
	assert.Equal(t, "reconcile_ledger", job.Name())
	require.NoError(t, NewScheduler().RunNow(job))

	drifts, err := store.LedgerDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}
