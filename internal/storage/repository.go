package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
	"fincore/internal/ledger"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// DSN builds the modernc connection string with the pragmas the ledger
// relies on: foreign keys, WAL and a busy timeout.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	fundWriter
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; SQLite serialises writes anyway and this keeps
	// transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("Ledger schema ready", "component", "storage", "path", dbPath, "schema_version", version)

	q := New(db)
	return &SQLiteRepository{
		fundWriter: fundWriter{q: q},
		db:         db,
		queries:    q,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.StorageError("ping", err)
	}
	return nil
}

// fundWriter implements ledger.FundStore over either the pool or a tx.
type fundWriter struct {
	q *Queries
}

// GetOrCreateFund implements ledger.FundStore.
func (w fundWriter) GetOrCreateFund(ctx context.Context, projectID, code, currency string) (core.Fund, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(code) == "" {
		return core.Fund{}, fmt.Errorf("%w: project and fund code are required", core.ErrInvalidInput)
	}
	err := w.q.InsertFundIfAbsent(ctx, InsertFundIfAbsentParams{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Code:        code,
		DisplayName: core.FundDisplayName(code),
		Currency:    core.CurrencyOrDefault(currency),
		CreatedAt:   formatTime(time.Now()),
	})
	if err != nil {
		return core.Fund{}, core.StorageError("insert fund", err)
	}
	f, err := w.q.GetFundByCode(ctx, projectID, code)
	if err != nil {
		return core.Fund{}, core.StorageError("get fund", err)
	}
	return toCoreFund(f), nil
}

// AppendTransaction implements ledger.FundStore.
func (w fundWriter) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	err := w.q.InsertTransaction(ctx, Transaction{
		ID:          tx.ID,
		FundID:      tx.FundID,
		ProjectID:   tx.ProjectID,
		PaymentID:   tx.PaymentID,
		Type:        string(tx.Type),
		AmountCents: tx.Amount.Cents,
		Currency:    core.CurrencyOrDefault(tx.Currency),
		Reference:   tx.Reference,
		CreatedAt:   formatTime(tx.CreatedAt),
	})
	return core.StorageError("insert transaction", err)
}

// IncrementBalance implements ledger.FundStore.
func (w fundWriter) IncrementBalance(ctx context.Context, fundID string, delta core.Money) (core.Money, error) {
	cents, err := w.q.IncrementFundBalance(ctx, delta.Cents, fundID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, fmt.Errorf("fund %s: %w", fundID, core.ErrNotFound)
	}
	if err != nil {
		return core.Money{}, core.StorageError("increment balance", err)
	}
	return core.NewMoney(cents), nil
}

// WithinTx implements ledger.Ledger on a database transaction.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(ledger.FundStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError("begin transaction", err)
	}
	if err := fn(fundWriter{q: r.queries.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "component", "storage", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.StorageError("commit transaction", err)
	}
	return nil
}

// GetPayment implements ledger.PaymentReader.
func (r *SQLiteRepository) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	p, err := r.queries.GetPayment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Payment{}, core.StorageError("get payment", err)
	}
	return toCorePayment(p), nil
}

// ActiveRule implements ledger.RuleReader.
func (r *SQLiteRepository) ActiveRule(ctx context.Context, projectID string) (core.AllocationRule, error) {
	row, err := r.queries.GetActiveRule(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AllocationRule{}, fmt.Errorf("allocation rule for project %s: %w", projectID, core.ErrNotFound)
	}
	if err != nil {
		return core.AllocationRule{}, core.StorageError("get active rule", err)
	}
	var plan core.AllocationPlan
	if err := json.Unmarshal([]byte(row.Allocation), &plan); err != nil {
		return core.AllocationRule{}, fmt.Errorf("decode rule %d: %w", row.ID, err)
	}
	return core.AllocationRule{ProjectID: row.ProjectID, Allocation: plan, Active: row.Active}, nil
}

// ListFunds implements ledger.ReportReader.
func (r *SQLiteRepository) ListFunds(ctx context.Context, scope core.Scope) ([]core.Fund, error) {
	var rows []Fund
	var err error
	if scope.IsProject() {
		rows, err = r.queries.ListFundsByProject(ctx, scope.ProjectID)
	} else {
		rows, err = r.queries.ListFundsByOwner(ctx, scope.AccountID)
	}
	if err != nil {
		return nil, core.StorageError("list funds", err)
	}
	out := make([]core.Fund, len(rows))
	for i, f := range rows {
		out[i] = toCoreFund(f)
	}
	return out, nil
}

// RecentTransactions implements ledger.ReportReader.
func (r *SQLiteRepository) RecentTransactions(ctx context.Context, scope core.Scope, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = core.DefaultRecentTransactions
	}
	var rows []Transaction
	var err error
	if scope.IsProject() {
		rows, err = r.queries.ListRecentTransactionsByProject(ctx, scope.ProjectID, int64(limit))
	} else {
		rows, err = r.queries.ListRecentTransactionsByOwner(ctx, scope.AccountID, int64(limit))
	}
	if err != nil {
		return nil, core.StorageError("list transactions", err)
	}
	return toCoreTransactions(rows), nil
}

// ListPayments implements ledger.ReportReader.
func (r *SQLiteRepository) ListPayments(ctx context.Context, scope core.Scope) ([]core.Payment, error) {
	var rows []Payment
	var err error
	if scope.IsProject() {
		rows, err = r.queries.ListPaymentsByProject(ctx, scope.ProjectID)
	} else {
		rows, err = r.queries.ListPaymentsByOwner(ctx, scope.AccountID)
	}
	if err != nil {
		return nil, core.StorageError("list payments", err)
	}
	out := make([]core.Payment, len(rows))
	for i, p := range rows {
		out[i] = toCorePayment(p)
	}
	return out, nil
}

// CountActiveLicenses implements ledger.ReportReader.
func (r *SQLiteRepository) CountActiveLicenses(ctx context.Context, scope core.Scope) (int, error) {
	var n int64
	var err error
	if scope.IsProject() {
		n, err = r.queries.CountActiveLicensesByProject(ctx, scope.ProjectID)
	} else {
		n, err = r.queries.CountActiveLicensesByOwner(ctx, scope.AccountID)
	}
	if err != nil {
		return 0, core.StorageError("count licenses", err)
	}
	return int(n), nil
}

// TransactionsByPayment implements ledger.TransactionLister.
func (r *SQLiteRepository) TransactionsByPayment(ctx context.Context, paymentID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByPayment(ctx, paymentID)
	if err != nil {
		return nil, core.StorageError("list payment transactions", err)
	}
	return toCoreTransactions(rows), nil
}

// LedgerDrifts implements ledger.Reconciler.
func (r *SQLiteRepository) LedgerDrifts(ctx context.Context) ([]core.FundDrift, error) {
	rows, err := r.queries.ListLedgerDrifts(ctx)
	if err != nil {
		return nil, core.StorageError("list drifts", err)
	}
	out := make([]core.FundDrift, len(rows))
	for i, d := range rows {
		out[i] = core.FundDrift{
			FundID:        d.ID,
			ProjectID:     d.ProjectID,
			Code:          d.Code,
			Balance:       core.NewMoney(d.BalanceCents),
			LedgerBalance: core.NewMoney(d.LedgerCents),
		}
	}
	return out, nil
}

// RecomputeBalance implements ledger.Reconciler.
func (r *SQLiteRepository) RecomputeBalance(ctx context.Context, fundID string) (core.Money, error) {
	cents, err := r.queries.RecomputeFundBalance(ctx, fundID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, fmt.Errorf("fund %s: %w", fundID, core.ErrNotFound)
	}
	if err != nil {
		return core.Money{}, core.StorageError("recompute balance", err)
	}
	return core.NewMoney(cents), nil
}

// MirroredCount implements ledger.MirrorLog. A payment never mirrored
// reports zero.
func (r *SQLiteRepository) MirroredCount(ctx context.Context, paymentID string) (int, error) {
	count, err := r.queries.GetMirroredCount(ctx, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, core.StorageError("get mirror", err)
	}
	return int(count), nil
}

// MarkMirrored implements ledger.MirrorLog.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, paymentID, ref string, count int) error {
	err := r.queries.UpsertMirror(ctx, paymentID, ref, int64(count), formatTime(time.Now()))
	if err != nil {
		return core.StorageError("mark mirrored", err)
	}
	slog.InfoContext(ctx, "Payment marked as mirrored", "component", "storage",
		"payment_id", paymentID, "sheets_ref", ref, "mirrored_count", count)
	return nil
}

// CreateProject implements ledger.Seeder.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) error {
	if p.ID == "" {
		return fmt.Errorf("%w: project id is required", core.ErrInvalidInput)
	}
	return core.StorageError("create project", r.queries.UpsertProject(ctx, p.ID, p.OwnerID, p.Name, formatTime(time.Now())))
}

// CreatePayment implements ledger.Seeder.
func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) error {
	if p.ID == "" || p.ProjectID == "" {
		return fmt.Errorf("%w: payment id and project are required", core.ErrInvalidInput)
	}
	if p.Amount.IsNegative() {
		return core.ErrInvalidAmount
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return core.StorageError("create payment", r.queries.InsertPayment(ctx, Payment{
		ID:          p.ID,
		ProjectID:   p.ProjectID,
		AmountCents: p.Amount.Cents,
		Currency:    core.CurrencyOrDefault(p.Currency),
		CreatedAt:   formatTime(p.CreatedAt),
	}))
}

// CreateLicense implements ledger.Seeder.
func (r *SQLiteRepository) CreateLicense(ctx context.Context, l core.License) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return core.StorageError("create license", r.queries.InsertLicense(ctx, l.ID, l.PaymentID, l.ProjectID, l.Status))
}

// SetAllocationRule implements ledger.Seeder. An active rule replaces the
// project's current active rule.
func (r *SQLiteRepository) SetAllocationRule(ctx context.Context, rule core.AllocationRule) error {
	if err := rule.Allocation.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(rule.Allocation)
	if err != nil {
		return fmt.Errorf("encode allocation: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError("begin transaction", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if rule.Active {
		if err := q.DeactivateRules(ctx, rule.ProjectID); err != nil {
			return core.StorageError("deactivate rules", err)
		}
	}
	if err := q.InsertRule(ctx, rule.ProjectID, string(raw), rule.Active, formatTime(time.Now())); err != nil {
		return core.StorageError("insert rule", err)
	}
	return core.StorageError("commit transaction", tx.Commit())
}

func toCoreFund(f Fund) core.Fund {
	return core.Fund{
		ID:          f.ID,
		ProjectID:   f.ProjectID,
		Code:        f.Code,
		DisplayName: f.DisplayName,
		Balance:     core.NewMoney(f.BalanceCents),
		Currency:    f.Currency,
	}
}

func toCorePayment(p Payment) core.Payment {
	return core.Payment{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		Amount:    core.NewMoney(p.AmountCents),
		Currency:  p.Currency,
		CreatedAt: parseTime(p.CreatedAt),
	}
}

func toCoreTransactions(rows []Transaction) []core.Transaction {
	out := make([]core.Transaction, len(rows))
	for i, t := range rows {
		out[i] = core.Transaction{
			ID:        t.ID,
			FundID:    t.FundID,
			ProjectID: t.ProjectID,
			PaymentID: t.PaymentID,
			Type:      core.TxType(t.Type),
			Amount:    core.NewMoney(t.AmountCents),
			Currency:  t.Currency,
			Reference: t.Reference,
			CreatedAt: parseTime(t.CreatedAt),
		}
	}
	return out
}
