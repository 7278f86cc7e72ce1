package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestFundDisplayName(t *testing.T) {
	cases := map[string]string{
		"marketing":  "Marketing",
		"pro_labore": "Pro_labore",
		"inovacao":   "Inovacao",
		"":           "",
		"élan":       "Élan",
	}
	for in, want := range cases {
		if got := FundDisplayName(in); got != want {
			t.Fatalf("FundDisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTransactionSigned(t *testing.T) {
	credit := Transaction{Type: Credit, Amount: NewMoney(500)}
	debit := Transaction{Type: Debit, Amount: NewMoney(200)}
	if credit.Signed().Cents != 500 || debit.Signed().Cents != -200 {
		t.Fatalf("unexpected signed amounts: %v %v", credit.Signed(), debit.Signed())
	}
}

func TestTransactionValidate(t *testing.T) {
	ok := Transaction{FundID: "f1", Type: Credit, Amount: NewMoney(1)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, bad := range []Transaction{
		{Type: Credit, Amount: NewMoney(1)},
		{FundID: "f1", Type: "refund", Amount: NewMoney(1)},
		{FundID: "f1", Type: Debit},
	} {
		if err := bad.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", bad, err)
		}
	}
}

func TestScope(t *testing.T) {
	if err := (Scope{}).Validate(); err == nil {
		t.Fatal("empty scope should be invalid")
	}
	p := Scope{ProjectID: "p1", AccountID: "a1"}
	if !p.IsProject() || p.Key() != "project:p1" {
		t.Fatalf("unexpected project scope: %+v key=%s", p, p.Key())
	}
	a := Scope{AccountID: "a1"}
	if a.IsProject() || a.Key() != "account:a1" {
		t.Fatalf("unexpected account scope: %+v key=%s", a, a.Key())
	}
}

func TestErrorTaxonomy(t *testing.T) {
	pf := &PartialFailureError{PaymentID: "pay_1", Applied: []string{"marketing"}, Failed: "reserva", Err: StorageError("append", errors.New("disk full"))}
	wrapped := fmt.Errorf("distribute: %w", pf)

	if !errors.Is(wrapped, ErrPartialFailure) || !errors.Is(wrapped, ErrStorage) {
		t.Fatalf("partial failure should match both markers: %v", wrapped)
	}
	var target *PartialFailureError
	if !errors.As(wrapped, &target) || target.PaymentID != "pay_1" {
		t.Fatalf("errors.As failed: %v", wrapped)
	}
	if !IsRetryable(wrapped) {
		t.Fatal("partial failure should be retryable")
	}
	if IsRetryable(fmt.Errorf("x: %w", ErrNotFound)) || IsRetryable(ErrInvalidPlan) {
		t.Fatal("client errors must not be retryable")
	}
	if !errors.Is(ErrInvalidPlan, ErrInvalidInput) || !errors.Is(ErrInvalidAmount, ErrInvalidInput) {
		t.Fatal("plan and amount errors are invalid input")
	}
	if StorageError("op", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
