//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"fincore/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_AppendLedgerRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ref, err := client.AppendTransactions(ctx, []core.Transaction{{
		PaymentID: "integration-test",
		ProjectID: "integration",
		FundID:    "integration-fund",
		Type:      core.Credit,
		Amount:    core.NewMoney(1234),
		Currency:  core.DefaultCurrency,
		Reference: "Integration test row",
		CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("Failed to append ledger row: %v", err)
	}
	if ref == "" {
		t.Error("Expected non-empty reference")
	}
	t.Logf("Appended ledger row at %s", ref)
}
