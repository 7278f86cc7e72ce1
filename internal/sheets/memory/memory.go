package memory

import (
	"context"
	"fmt"
	"sync"

	"fincore/internal/core"
	ports "fincore/internal/sheets"
)

// Writer keeps mirrored rows in memory. Used when no spreadsheet is
// configured and in tests.
type Writer struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

var _ ports.LedgerWriter = (*Writer)(nil)

func New() *Writer { return &Writer{} }

// FailWith makes every following append return err. Nil clears it.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// AppendTransactions stores the rows and returns a synthetic range reference.
func (w *Writer) AppendTransactions(_ context.Context, txs []core.Transaction) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	if len(txs) == 0 {
		return "", nil
	}
	first := len(w.rows) + 1
	for _, tx := range txs {
		w.rows = append(w.rows, ports.Row(tx))
	}
	return fmt.Sprintf("mem:%d-%d", first, len(w.rows)), nil
}

// Rows returns a copy of everything written so far.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]any(nil), w.rows...)
}
