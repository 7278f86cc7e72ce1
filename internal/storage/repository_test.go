package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/core"
	"fincore/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fincore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fincore.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	version, err := RunMigrations(DSN(path))
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(time.Nanosecond)
	assert.Less(t, formatTime(a), formatTime(b))
	assert.True(t, parseTime(formatTime(b)).Equal(b))
}

func TestGetOrCreateFundConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := repo.GetOrCreateFund(ctx, "p1", "marketing", "")
			assert.NoError(t, err)
			ids[i] = f.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	funds, err := repo.ListFunds(ctx, core.Scope{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, funds, 1)
	assert.Equal(t, "Marketing", funds[0].DisplayName)
	assert.Equal(t, "BRL", funds[0].Currency)
}

func TestIncrementBalanceConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, err := repo.GetOrCreateFund(ctx, "p1", "reserva", "BRL")
	require.NoError(t, err)

	const k = 40
	var wg sync.WaitGroup
	for i := 1; i <= k; i++ {
		wg.Add(1)
		go func(cents int64) {
			defer wg.Done()
			_, err := repo.IncrementBalance(ctx, f.ID, core.NewMoney(cents))
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	funds, err := repo.ListFunds(ctx, core.Scope{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(k*(k+1)/2), funds[0].Balance.Cents)

	_, err = repo.IncrementBalance(ctx, "missing", core.NewMoney(1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestWithinTxRollback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(fs ledger.FundStore) error {
		f, err := fs.GetOrCreateFund(ctx, "p1", "a", "")
		if err != nil {
			return err
		}
		if err := fs.AppendTransaction(ctx, core.Transaction{FundID: f.ID, ProjectID: "p1", PaymentID: "pay", Type: core.Credit, Amount: core.NewMoney(100)}); err != nil {
			return err
		}
		if _, err := fs.IncrementBalance(ctx, f.ID, core.NewMoney(100)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	funds, err := repo.ListFunds(ctx, core.Scope{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, funds)
	txs, err := repo.TransactionsByPayment(ctx, "pay")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestWithinTxCommit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithinTx(ctx, func(fs ledger.FundStore) error {
		for _, code := range []string{"a", "b"} {
			f, err := fs.GetOrCreateFund(ctx, "p1", code, "USD")
			if err != nil {
				return err
			}
			if err := fs.AppendTransaction(ctx, core.Transaction{FundID: f.ID, ProjectID: "p1", PaymentID: "pay", Type: core.Credit, Amount: core.NewMoney(250), Currency: "USD", Reference: "ref"}); err != nil {
				return err
			}
			if _, err := fs.IncrementBalance(ctx, f.ID, core.NewMoney(250)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	txs, err := repo.TransactionsByPayment(ctx, "pay")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, core.Credit, txs[0].Type)
	assert.Equal(t, "USD", txs[0].Currency)
	assert.Equal(t, "ref", txs[0].Reference)

	drifts, err := repo.LedgerDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestTransactionsAreAppendOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, err := repo.GetOrCreateFund(ctx, "p1", "a", "")
	require.NoError(t, err)
	require.NoError(t, repo.AppendTransaction(ctx, core.Transaction{FundID: f.ID, ProjectID: "p1", Type: core.Credit, Amount: core.NewMoney(1)}))

	_, err = repo.db.ExecContext(ctx, `UPDATE transactions SET amount_cents = 2`)
	assert.Error(t, err)
	_, err = repo.db.ExecContext(ctx, `DELETE FROM transactions`)
	assert.Error(t, err)

	err = repo.AppendTransaction(ctx, core.Transaction{FundID: f.ID, Type: core.Credit, Amount: core.NewMoney(-5)})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestReportQueriesByScope(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateProject(ctx, core.Project{ID: "p1", OwnerID: "acc", Name: "One"}))
	require.NoError(t, repo.CreateProject(ctx, core.Project{ID: "p2", OwnerID: "acc", Name: "Two"}))
	require.NoError(t, repo.CreateProject(ctx, core.Project{ID: "p3", OwnerID: "other"}))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, pid := range []string{"p1", "p2", "p3"} {
		require.NoError(t, repo.CreatePayment(ctx, core.Payment{
			ID: "pay" + pid, ProjectID: pid, Amount: core.NewMoney(int64(i+1) * 1000), CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.CreateLicense(ctx, core.License{PaymentID: "payp1", ProjectID: "p1", Status: core.LicenseActive}))
	require.NoError(t, repo.CreateLicense(ctx, core.License{PaymentID: "payp3", ProjectID: "p3", Status: core.LicenseActive}))

	for _, pid := range []string{"p1", "p2", "p3"} {
		f, err := repo.GetOrCreateFund(ctx, pid, "a", "")
		require.NoError(t, err)
		require.NoError(t, repo.AppendTransaction(ctx, core.Transaction{FundID: f.ID, ProjectID: pid, Type: core.Credit, Amount: core.NewMoney(5), CreatedAt: base}))
	}

	account := core.Scope{AccountID: "acc"}
	funds, err := repo.ListFunds(ctx, account)
	require.NoError(t, err)
	assert.Len(t, funds, 2)

	payments, err := repo.ListPayments(ctx, account)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "payp2", payments[0].ID)
	assert.True(t, payments[0].CreatedAt.Equal(base.Add(time.Hour)))

	txs, err := repo.RecentTransactions(ctx, account, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	n, err := repo.CountActiveLicenses(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CountActiveLicenses(ctx, core.Scope{ProjectID: "p3"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := repo.GetPayment(ctx, "payp1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.Amount.Cents)
	assert.Equal(t, core.DefaultCurrency, p.Currency)

	_, err = repo.GetPayment(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecentTransactionsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, err := repo.GetOrCreateFund(ctx, "p1", "a", "")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		require.NoError(t, repo.AppendTransaction(ctx, core.Transaction{
			ID: string(rune('a' + i)), FundID: f.ID, ProjectID: "p1", Type: core.Credit,
			Amount: core.NewMoney(1), CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	txs, err := repo.RecentTransactions(ctx, core.Scope{ProjectID: "p1"}, 10)
	require.NoError(t, err)
	require.Len(t, txs, 10)
	assert.Equal(t, "l", txs[0].ID)
	assert.Equal(t, "c", txs[9].ID)
}

func TestActiveRuleRoundTripKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.ActiveRule(ctx, "p1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.SetAllocationRule(ctx, core.AllocationRule{ProjectID: "p1", Allocation: core.NewPlan("z", 70, "a", 30), Active: true}))
	require.NoError(t, repo.SetAllocationRule(ctx, core.AllocationRule{ProjectID: "p1", Allocation: core.NewPlan("zeta", "62.5", "alpha", "37.5"), Active: true}))

	rule, err := repo.ActiveRule(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, rule.Allocation.Codes())
	assert.Equal(t, "62.5", rule.Allocation[0].Percent.String())
	assert.True(t, rule.Active)
}

func TestReconcileDriftAndRecompute(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, err := repo.GetOrCreateFund(ctx, "p1", "a", "")
	require.NoError(t, err)
	require.NoError(t, repo.AppendTransaction(ctx, core.Transaction{FundID: f.ID, ProjectID: "p1", Type: core.Credit, Amount: core.NewMoney(900)}))
	require.NoError(t, repo.AppendTransaction(ctx, core.Transaction{FundID: f.ID, ProjectID: "p1", Type: core.Debit, Amount: core.NewMoney(100)}))

	drifts, err := repo.LedgerDrifts(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, int64(0), drifts[0].Balance.Cents)
	assert.Equal(t, int64(800), drifts[0].LedgerBalance.Cents)

	bal, err := repo.RecomputeBalance(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), bal.Cents)

	drifts, err = repo.LedgerDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	_, err = repo.RecomputeBalance(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMirrorLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.MirroredCount(ctx, "pay")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.MarkMirrored(ctx, "pay", "Ledger!A2:I7", 6))
	require.NoError(t, repo.MarkMirrored(ctx, "pay", "Ledger!A2:I7", 6))
	n, err = repo.MirroredCount(ctx, "pay")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	require.NoError(t, repo.MarkMirrored(ctx, "pay", "Ledger!A8:I13", 12))
	n, err = repo.MirroredCount(ctx, "pay")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestClosedRepositoryIsStorageError(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.ListFunds(context.Background(), core.Scope{ProjectID: "p1"})
	assert.ErrorIs(t, err, core.ErrStorage)
}
