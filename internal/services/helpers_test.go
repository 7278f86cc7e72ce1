package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fincore/internal/amqp"
	"fincore/internal/core"
	"fincore/internal/ledger"
	"fincore/internal/ledger/memory"
)

var errDiskFull = errors.New("disk full")

// failingLedger fails the n-th IncrementBalance made inside a unit of work.
type failingLedger struct {
	*memory.Store
	failOn int
	calls  int
}

func (f *failingLedger) WithinTx(ctx context.Context, fn func(ledger.FundStore) error) error {
	return f.Store.WithinTx(ctx, func(fs ledger.FundStore) error {
		return fn(&failingFundStore{FundStore: fs, parent: f})
	})
}

type failingFundStore struct {
	ledger.FundStore
	parent *failingLedger
}

func (s *failingFundStore) IncrementBalance(ctx context.Context, fundID string, delta core.Money) (core.Money, error) {
	s.parent.calls++
	if s.parent.calls == s.parent.failOn {
		return core.Money{}, core.StorageError("increment balance", errDiskFull)
	}
	return s.FundStore.IncrementBalance(ctx, fundID, delta)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.DistributionMessage
	err  error
}

func (p *recordingPublisher) PublishDistribution(_ context.Context, msg *amqp.DistributionMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

type stubRules struct {
	rule core.AllocationRule
	err  error
}

func (s stubRules) ActiveRule(context.Context, string) (core.AllocationRule, error) {
	return s.rule, s.err
}

var seedTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// seedStore creates projects p1 and p2 owned by "acc" and one payment of
// amountCents on p1 with id "pay-1".
func seedStore(t *testing.T, amountCents int64) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, core.Project{ID: "p1", OwnerID: "acc"}))
	require.NoError(t, s.CreateProject(ctx, core.Project{ID: "p2", OwnerID: "acc"}))
	require.NoError(t, s.CreatePayment(ctx, core.Payment{ID: "pay-1", ProjectID: "p1", Amount: core.NewMoney(amountCents), CreatedAt: seedTime}))
	return s
}

func sumTransactions(txs []core.Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount.Cents
	}
	return total
}
