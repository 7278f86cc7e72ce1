// Package memory is an in-process ledger store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
	"fincore/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type fundKey struct {
	projectID string
	code      string
}

type mirrorEntry struct {
	ref   string
	count int
}

type Store struct {
	mu       sync.Mutex
	funds    map[string]*core.Fund
	fundKeys map[fundKey]string
	txs      []core.Transaction

	projects map[string]core.Project
	payments map[string]core.Payment
	licenses []core.License
	rules    map[string]core.AllocationRule
	mirrored map[string]mirrorEntry

	closed bool
}

func New() *Store {
	return &Store{
		funds:    make(map[string]*core.Fund),
		fundKeys: make(map[fundKey]string),
		projects: make(map[string]core.Project),
		payments: make(map[string]core.Payment),
		rules:    make(map[string]core.AllocationRule),
		mirrored: make(map[string]mirrorEntry),
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return core.StorageError("memory", fmt.Errorf("store is closed"))
	}
	if err := ctx.Err(); err != nil {
		return core.StorageError("memory", err)
	}
	return nil
}

// Ping fails once the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

// GetOrCreateFund implements ledger.FundStore.
func (s *Store) GetOrCreateFund(ctx context.Context, projectID, code, currency string) (core.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, err := s.getOrCreateFund(ctx, projectID, code, currency)
	return f, err
}

// AppendTransaction implements ledger.FundStore.
func (s *Store) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTransaction(ctx, tx)
}

// IncrementBalance implements ledger.FundStore.
func (s *Store) IncrementBalance(ctx context.Context, fundID string, delta core.Money) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal, _, err := s.incrementBalance(ctx, fundID, delta)
	return bal, err
}

// WithinTx serialises units of work on the store lock and undoes every
// write made through the view when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ledger.FundStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	view := &txView{s: s, ctx: ctx, txMark: len(s.txs), prevBalance: make(map[string]core.Money)}
	if err := fn(view); err != nil {
		view.rollback()
		return err
	}
	view.done = true
	return nil
}

func (s *Store) getOrCreateFund(ctx context.Context, projectID, code, currency string) (core.Fund, bool, error) {
	if err := s.check(ctx); err != nil {
		return core.Fund{}, false, err
	}
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(code) == "" {
		return core.Fund{}, false, fmt.Errorf("%w: project and fund code are required", core.ErrInvalidInput)
	}
	key := fundKey{projectID, code}
	if id, ok := s.fundKeys[key]; ok {
		return *s.funds[id], false, nil
	}
	f := &core.Fund{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Code:        code,
		DisplayName: core.FundDisplayName(code),
		Currency:    core.CurrencyOrDefault(currency),
	}
	s.funds[f.ID] = f
	s.fundKeys[key] = f.ID
	return *f, true, nil
}

func (s *Store) appendTransaction(ctx context.Context, tx core.Transaction) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	if _, ok := s.funds[tx.FundID]; !ok {
		return fmt.Errorf("fund %s: %w", tx.FundID, core.ErrNotFound)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *Store) incrementBalance(ctx context.Context, fundID string, delta core.Money) (core.Money, core.Money, error) {
	if err := s.check(ctx); err != nil {
		return core.Money{}, core.Money{}, err
	}
	f, ok := s.funds[fundID]
	if !ok {
		return core.Money{}, core.Money{}, fmt.Errorf("fund %s: %w", fundID, core.ErrNotFound)
	}
	prev := f.Balance
	f.Balance = f.Balance.Add(delta)
	return f.Balance, prev, nil
}

// txView is the FundStore handed to WithinTx callbacks. It runs with the
// store lock already held and keeps an undo log.
type txView struct {
	s           *Store
	ctx         context.Context
	txMark      int
	created     []string
	prevBalance map[string]core.Money
	done        bool
}

func (v *txView) active(ctx context.Context) error {
	if v.done {
		return core.StorageError("memory", fmt.Errorf("transaction already finished"))
	}
	if err := v.ctx.Err(); err != nil {
		return core.StorageError("memory", err)
	}
	return core.StorageError("memory", ctx.Err())
}

func (v *txView) GetOrCreateFund(ctx context.Context, projectID, code, currency string) (core.Fund, error) {
	if err := v.active(ctx); err != nil {
		return core.Fund{}, err
	}
	f, created, err := v.s.getOrCreateFund(ctx, projectID, code, currency)
	if created {
		v.created = append(v.created, f.ID)
	}
	return f, err
}

func (v *txView) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	if err := v.active(ctx); err != nil {
		return err
	}
	return v.s.appendTransaction(ctx, tx)
}

func (v *txView) IncrementBalance(ctx context.Context, fundID string, delta core.Money) (core.Money, error) {
	if err := v.active(ctx); err != nil {
		return core.Money{}, err
	}
	bal, prev, err := v.s.incrementBalance(ctx, fundID, delta)
	if err != nil {
		return core.Money{}, err
	}
	if _, seen := v.prevBalance[fundID]; !seen {
		v.prevBalance[fundID] = prev
	}
	return bal, nil
}

func (v *txView) rollback() {
	v.done = true
	v.s.txs = v.s.txs[:v.txMark]
	for id, bal := range v.prevBalance {
		if f, ok := v.s.funds[id]; ok {
			f.Balance = bal
		}
	}
	for _, id := range v.created {
		if f, ok := v.s.funds[id]; ok {
			delete(v.s.fundKeys, fundKey{f.ProjectID, f.Code})
			delete(v.s.funds, id)
		}
	}
}

// GetPayment implements ledger.PaymentReader.
func (s *Store) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Payment{}, err
	}
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
	}
	return p, nil
}

// ActiveRule implements ledger.RuleReader.
func (s *Store) ActiveRule(ctx context.Context, projectID string) (core.AllocationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.AllocationRule{}, err
	}
	r, ok := s.rules[projectID]
	if !ok || !r.Active {
		return core.AllocationRule{}, fmt.Errorf("allocation rule for project %s: %w", projectID, core.ErrNotFound)
	}
	return r, nil
}

func (s *Store) inScope(scope core.Scope, projectID string) bool {
	if scope.IsProject() {
		return projectID == scope.ProjectID
	}
	p, ok := s.projects[projectID]
	return ok && p.OwnerID == scope.AccountID
}

// ListFunds implements ledger.ReportReader. Funds are ordered by project
// then code.
func (s *Store) ListFunds(ctx context.Context, scope core.Scope) ([]core.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := []core.Fund{}
	for _, f := range s.funds {
		if s.inScope(scope, f.ProjectID) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// RecentTransactions implements ledger.ReportReader.
func (s *Store) RecentTransactions(ctx context.Context, scope core.Scope, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := []core.Transaction{}
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.inScope(scope, s.txs[i].ProjectID) {
			out = append(out, s.txs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListPayments implements ledger.ReportReader.
func (s *Store) ListPayments(ctx context.Context, scope core.Scope) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := []core.Payment{}
	for _, p := range s.payments {
		if s.inScope(scope, p.ProjectID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CountActiveLicenses implements ledger.ReportReader.
func (s *Store) CountActiveLicenses(ctx context.Context, scope core.Scope) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range s.licenses {
		if l.Status == core.LicenseActive && s.inScope(scope, l.ProjectID) {
			n++
		}
	}
	return n, nil
}

// TransactionsByPayment implements ledger.TransactionLister in insertion order.
func (s *Store) TransactionsByPayment(ctx context.Context, paymentID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := []core.Transaction{}
	for _, tx := range s.txs {
		if tx.PaymentID == paymentID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) ledgerSum(fundID string) core.Money {
	var sum core.Money
	for _, tx := range s.txs {
		if tx.FundID == fundID {
			sum = sum.Add(tx.Signed())
		}
	}
	return sum
}

// LedgerDrifts implements ledger.Reconciler.
func (s *Store) LedgerDrifts(ctx context.Context) ([]core.FundDrift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := []core.FundDrift{}
	for _, f := range s.funds {
		if sum := s.ledgerSum(f.ID); sum != f.Balance {
			out = append(out, core.FundDrift{FundID: f.ID, ProjectID: f.ProjectID, Code: f.Code, Balance: f.Balance, LedgerBalance: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// RecomputeBalance implements ledger.Reconciler.
func (s *Store) RecomputeBalance(ctx context.Context, fundID string) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Money{}, err
	}
	f, ok := s.funds[fundID]
	if !ok {
		return core.Money{}, fmt.Errorf("fund %s: %w", fundID, core.ErrNotFound)
	}
	f.Balance = s.ledgerSum(fundID)
	return f.Balance, nil
}

// MirroredCount implements ledger.MirrorLog.
func (s *Store) MirroredCount(ctx context.Context, paymentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return s.mirrored[paymentID].count, nil
}

// MarkMirrored implements ledger.MirrorLog.
func (s *Store) MarkMirrored(ctx context.Context, paymentID, ref string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mirrored[paymentID] = mirrorEntry{ref: ref, count: count}
	return nil
}

// CreateProject implements ledger.Seeder.
func (s *Store) CreateProject(ctx context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("%w: project id is required", core.ErrInvalidInput)
	}
	s.projects[p.ID] = p
	return nil
}

// CreatePayment implements ledger.Seeder.
func (s *Store) CreatePayment(ctx context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if p.ID == "" || p.ProjectID == "" {
		return fmt.Errorf("%w: payment id and project are required", core.ErrInvalidInput)
	}
	if p.Amount.IsNegative() {
		return core.ErrInvalidAmount
	}
	p.Currency = core.CurrencyOrDefault(p.Currency)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.payments[p.ID] = p
	return nil
}

// CreateLicense implements ledger.Seeder.
func (s *Store) CreateLicense(ctx context.Context, l core.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.licenses = append(s.licenses, l)
	return nil
}

// SetAllocationRule implements ledger.Seeder. It replaces any rule held
// for the project.
func (s *Store) SetAllocationRule(ctx context.Context, r core.AllocationRule) error {
	if err := r.Allocation.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.rules[r.ProjectID] = r
	return nil
}
