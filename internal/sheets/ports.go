package sheets

import (
	"context"

	"fincore/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter mirrors ledger rows to an external spreadsheet.
	LedgerWriter interface {
		// AppendTransactions writes one row per transaction, in order, and
		// returns a reference to the written range.
		AppendTransactions(ctx context.Context, txs []core.Transaction) (ref string, err error)
	}
)

// Header is the column layout of a ledger sheet.
var Header = []string{"Date", "Payment", "Project", "Fund", "Type", "Amount", "Currency", "Reference"}

// Row renders a transaction in Header column order.
func Row(tx core.Transaction) []any {
	return []any{
		tx.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		tx.PaymentID,
		tx.ProjectID,
		tx.FundID,
		string(tx.Type),
		tx.Amount.String(),
		tx.Currency,
		tx.Reference,
	}
}
