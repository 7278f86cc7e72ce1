package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultCurrency is used when a payment carries no currency.
const DefaultCurrency = "BRL"

const (
	Credit TxType = "credit"
	Debit  TxType = "debit"
)

type (
	// TxType is the direction of a ledger transaction.
	TxType string

	// Project is the ownership boundary for funds. Owned by an account.
	Project struct {
		ID      string
		OwnerID string
		Name    string
	}

	// Fund is a named balance bucket scoped to a project.
	Fund struct {
		ID          string `json:"id"`
		ProjectID   string `json:"project_id"`
		Code        string `json:"code"`
		DisplayName string `json:"display_name"`
		Balance     Money  `json:"balance"`
		Currency    string `json:"currency"`
	}

	// Transaction is an immutable ledger entry against a fund.
	Transaction struct {
		ID        string    `json:"id"`
		FundID    string    `json:"fund_id"`
		ProjectID string    `json:"project_id"`
		PaymentID string    `json:"payment_id"`
		Type      TxType    `json:"type"`
		Amount    Money     `json:"amount"`
		Currency  string    `json:"currency"`
		Reference string    `json:"reference"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Payment is an incoming amount produced by payment ingestion.
	Payment struct {
		ID        string    `json:"id"`
		ProjectID string    `json:"project_id"`
		Amount    Money     `json:"amount"`
		Currency  string    `json:"currency"`
		CreatedAt time.Time `json:"created_at"`
	}

	// License is sold alongside a payment; only its status matters here.
	License struct {
		ID        string
		PaymentID string
		ProjectID string
		Status    string
	}

	// AllocationRule is a persisted default split for a project.
	AllocationRule struct {
		ProjectID  string
		Allocation AllocationPlan
		Active     bool
	}

	// Scope selects a single project or every project owned by an account.
	Scope struct {
		ProjectID string `json:"project_id,omitempty"`
		AccountID string `json:"account_id"`
	}

	// FundDrift is a fund whose stored balance disagrees with its ledger.
	FundDrift struct {
		FundID        string `json:"fund_id"`
		ProjectID     string `json:"project_id"`
		Code          string `json:"code"`
		Balance       Money  `json:"balance"`
		LedgerBalance Money  `json:"ledger_balance"`
	}
)

// LicenseActive is the license status counted by summaries.
const LicenseActive = "active"

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t == Credit || t == Debit
}

// Signed returns the amount as a balance delta: positive for credits,
// negative for debits.
func (tx Transaction) Signed() Money {
	if tx.Type == Debit {
		return Money{Cents: -tx.Amount.Cents}
	}
	return tx.Amount
}

// Validate checks the append-only ledger row before it is written.
func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.FundID) == "" {
		return ErrInvalidInput
	}
	if !tx.Type.Valid() {
		return ErrInvalidInput
	}
	return tx.Amount.Validate()
}

// IsProject reports whether the scope targets a single project.
func (s Scope) IsProject() bool {
	return strings.TrimSpace(s.ProjectID) != ""
}

// Key returns a stable cache key for the scope.
func (s Scope) Key() string {
	if s.IsProject() {
		return "project:" + s.ProjectID
	}
	return "account:" + s.AccountID
}

// Validate requires at least one of project or account.
func (s Scope) Validate() error {
	if !s.IsProject() && strings.TrimSpace(s.AccountID) == "" {
		return ErrInvalidInput
	}
	return nil
}

// FundDisplayName derives a display name by upper-casing the first letter
// of the code: "marketing" becomes "Marketing".
func FundDisplayName(code string) string {
	if code == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(code)
	return string(unicode.ToUpper(r)) + code[size:]
}

// CurrencyOrDefault returns c, or DefaultCurrency when c is blank.
func CurrencyOrDefault(c string) string {
	if strings.TrimSpace(c) == "" {
		return DefaultCurrency
	}
	return c
}
