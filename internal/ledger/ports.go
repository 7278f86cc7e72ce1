// Package ledger declares the storage ports of the allocation engine.
// Implementations live in internal/storage (SQLite) and
// internal/ledger/memory.
package ledger

import (
	"context"

	"fincore/internal/core"
)

// Ports for the fund ledger and the read-only collaborator tables.
type (
	// FundStore is the mutating surface used while distributing a payment.
	FundStore interface {
		// GetOrCreateFund returns the fund for (projectID, code), creating it
		// with a zero balance if absent. Concurrent callers observe one fund.
		GetOrCreateFund(ctx context.Context, projectID, code, currency string) (core.Fund, error)
		// AppendTransaction persists one immutable ledger row.
		AppendTransaction(ctx context.Context, tx core.Transaction) error
		// IncrementBalance atomically adds delta and returns the new balance.
		IncrementBalance(ctx context.Context, fundID string, delta core.Money) (core.Money, error)
	}

	// Ledger groups fund mutations into units of work.
	Ledger interface {
		FundStore
		// WithinTx runs fn against a transactional view. A non-nil error from
		// fn, or a failed commit, discards every write made through the view.
		WithinTx(ctx context.Context, fn func(FundStore) error) error
	}

	PaymentReader interface {
		GetPayment(ctx context.Context, id string) (core.Payment, error)
	}

	// RuleReader returns core.ErrNotFound when a project has no active rule.
	RuleReader interface {
		ActiveRule(ctx context.Context, projectID string) (core.AllocationRule, error)
	}

	// ReportReader feeds the summary aggregator. Transactions and payments
	// are returned newest first.
	ReportReader interface {
		ListFunds(ctx context.Context, scope core.Scope) ([]core.Fund, error)
		RecentTransactions(ctx context.Context, scope core.Scope, limit int) ([]core.Transaction, error)
		ListPayments(ctx context.Context, scope core.Scope) ([]core.Payment, error)
		CountActiveLicenses(ctx context.Context, scope core.Scope) (int, error)
	}

	TransactionLister interface {
		TransactionsByPayment(ctx context.Context, paymentID string) ([]core.Transaction, error)
	}

	// Reconciler compares stored balances with the ledger.
	Reconciler interface {
		LedgerDrifts(ctx context.Context) ([]core.FundDrift, error)
		// RecomputeBalance sets the fund balance to its ledger sum in one
		// statement and returns the new balance.
		RecomputeBalance(ctx context.Context, fundID string) (core.Money, error)
	}

	// MirrorLog records how many of a payment's transactions, in insertion
	// order, were copied to the external sheet.
	MirrorLog interface {
		MirroredCount(ctx context.Context, paymentID string) (int, error)
		MarkMirrored(ctx context.Context, paymentID, ref string, count int) error
	}

	// Seeder writes collaborator-owned rows. Used by tests and local setup.
	Seeder interface {
		CreateProject(ctx context.Context, p core.Project) error
		CreatePayment(ctx context.Context, p core.Payment) error
		CreateLicense(ctx context.Context, l core.License) error
		SetAllocationRule(ctx context.Context, r core.AllocationRule) error
	}

	Store interface {
		Ledger
		PaymentReader
		RuleReader
		ReportReader
		TransactionLister
		Reconciler
		MirrorLog
		Seeder
		Close() error
	}
)
