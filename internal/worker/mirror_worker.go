package worker

import (
	"context"
	"fmt"

	"fincore/internal/amqp"
	"fincore/internal/ledger"
	"fincore/internal/log"
	"fincore/internal/metrics"
	"fincore/internal/sheets"
)

// MirrorStore is what the mirror worker reads and records.
type MirrorStore interface {
	ledger.TransactionLister
	ledger.MirrorLog
}

// MirrorWorker copies the transactions of each completed distribution to a
// spreadsheet. The mirror log holds how many of a payment's transactions
// are already in the sheet, so a payment distributed twice has its second
// batch appended and every transaction is written once.
type MirrorWorker struct {
	store   MirrorStore
	sheets  sheets.LedgerWriter
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewMirrorWorker(store MirrorStore, writer sheets.LedgerWriter, m *metrics.Metrics) *MirrorWorker {
	return &MirrorWorker{
		store:   store,
		sheets:  writer,
		metrics: m,
		logger:  log.Default(log.ComponentWorker),
	}
}

// HandleDistribution processes a single distribution event from AMQP.
// Returning an error makes the consumer requeue the message.
func (w *MirrorWorker) HandleDistribution(ctx context.Context, msg *amqp.DistributionMessage) error {
	logger := w.logger.With(log.FieldPaymentID, msg.PaymentID, log.FieldProjectID, msg.ProjectID)

	mirrored, err := w.store.MirroredCount(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("check mirror log: %w", err)
	}
	txs, err := w.store.TransactionsByPayment(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if mirrored >= len(txs) {
		logger.DebugContext(ctx, "Payment already mirrored, skipping", "mirrored", mirrored)
		return nil
	}

	// Transactions are listed in insertion order, so the unmirrored ones
	// are the tail. An earlier event may have carried this batch already.
	pending := txs[mirrored:]
	if len(pending) < msg.Transactions {
		logger.WarnContext(ctx, "Fewer pending transactions than the event announced",
			"event_transactions", msg.Transactions, "pending", len(pending))
	}

	ref, err := w.sheets.AppendTransactions(ctx, pending)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mirror transactions", log.FieldError, err)
		return fmt.Errorf("append to sheets: %w", err)
	}

	// A failure here means the rows may be written twice on redelivery.
	if err := w.store.MarkMirrored(ctx, msg.PaymentID, ref, len(txs)); err != nil {
		logger.ErrorContext(ctx, "Rows written but mirror log not updated",
			log.FieldSheetsRef, ref, log.FieldError, err)
		return fmt.Errorf("mark mirrored: %w", err)
	}

	w.metrics.PaymentMirrored()
	logger.InfoContext(ctx, "Distribution mirrored",
		log.FieldSheetsRef, ref, "transactions", len(pending))
	return nil
}
