package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fincore/internal/amqp"
	"fincore/internal/core"
	"fincore/internal/ledger"
	"fincore/internal/log"
	"fincore/internal/metrics"
)

// ReferenceFormat is the reference written on every automatic credit.
const ReferenceFormat = "Distribuição automática de %s"

// DistributionStore is what a Distributor needs from storage.
type DistributionStore interface {
	ledger.Ledger
	ledger.PaymentReader
}

// EventPublisher announces committed distributions.
type EventPublisher interface {
	PublishDistribution(ctx context.Context, msg *amqp.DistributionMessage) error
}

// Invalidator drops cached reports after the ledger changes.
type Invalidator interface {
	Invalidate()
}

type DistributionRequest struct {
	PaymentID string              `json:"payment_id"`
	Plan      core.AllocationPlan `json:"allocation_plan,omitempty"`
	ProjectID string              `json:"project_id,omitempty"`
}

// DistributionResult reports a committed distribution. TotalAmount is the
// payment amount; DistributedAmount is what the transactions credited and
// differs from it when the plan does not total 100.
type DistributionResult struct {
	PaymentID         string              `json:"payment_id"`
	ProjectID         string              `json:"project_id"`
	Transactions      []core.Transaction  `json:"transactions"`
	Allocation        core.AllocationPlan `json:"allocation"`
	PlanSource        PlanSource          `json:"plan_source"`
	TotalAmount       core.Money          `json:"total_amount"`
	DistributedAmount core.Money          `json:"distributed_amount"`
	Currency          string              `json:"currency"`
}

type Distributor struct {
	store       DistributionStore
	resolver    *PlanResolver
	publisher   EventPublisher
	invalidator Invalidator
	metrics     *metrics.Metrics
	logger      *log.Logger
	structured  *log.StructuredLogger
	now         func() time.Time
}

type DistributorOption func(*Distributor)

func WithPublisher(p EventPublisher) DistributorOption {
	return func(d *Distributor) { d.publisher = p }
}

func WithInvalidator(i Invalidator) DistributorOption {
	return func(d *Distributor) { d.invalidator = i }
}

func WithMetrics(m *metrics.Metrics) DistributorOption {
	return func(d *Distributor) { d.metrics = m }
}

func WithLogger(l *log.Logger) DistributorOption {
	return func(d *Distributor) { d.logger = l.WithComponent(log.ComponentDistribute) }
}

func WithClock(now func() time.Time) DistributorOption {
	return func(d *Distributor) { d.now = now }
}

func NewDistributor(store DistributionStore, resolver *PlanResolver, opts ...DistributorOption) *Distributor {
	d := &Distributor{
		store:    store,
		resolver: resolver,
		logger:   log.Default(log.ComponentDistribute),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.resolver == nil {
		d.resolver = NewPlanResolver(nil)
	}
	d.structured = log.NewStructuredLogger(d.logger)
	return d
}

// Distribute splits a payment across funds in one unit of work. Either
// every credit and balance increment is committed or none is. Retrying a
// failed call is safe; retrying a successful one credits the payment again.
func (d *Distributor) Distribute(ctx context.Context, req DistributionRequest) (DistributionResult, error) {
	start := time.Now()
	res, err := d.distribute(ctx, req)
	d.metrics.ObserveDistribution(resultLabel(err), res.DistributedAmount.Cents, time.Since(start))
	if err != nil {
		fields := log.NewFields().WithErrorType(errorType(err))
		fields[log.FieldPaymentID] = req.PaymentID
		d.structured.LogError(ctx, "Distribution failed", err, log.ComponentDistribute, log.OpDistribute, fields)
	}
	return res, err
}

func (d *Distributor) distribute(ctx context.Context, req DistributionRequest) (DistributionResult, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return DistributionResult{}, fmt.Errorf("%w: payment_id is required", core.ErrInvalidInput)
	}

	payment, err := d.store.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return DistributionResult{}, fmt.Errorf("load payment: %w", err)
	}
	if payment.Amount.IsNegative() {
		return DistributionResult{}, fmt.Errorf("payment %s: %w", payment.ID, core.ErrInvalidAmount)
	}

	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		projectID = payment.ProjectID
	}
	if projectID == "" {
		return DistributionResult{}, fmt.Errorf("%w: payment %s has no project", core.ErrInvalidInput, payment.ID)
	}

	plan, source, err := d.resolver.Resolve(ctx, projectID, req.Plan)
	if err != nil {
		return DistributionResult{}, err
	}
	amounts, err := plan.Split(payment.Amount)
	if err != nil {
		return DistributionResult{}, err
	}

	currency := core.CurrencyOrDefault(payment.Currency)
	reference := fmt.Sprintf(ReferenceFormat, payment.ID)
	createdAt := d.now().UTC()

	var (
		txs     []core.Transaction
		applied []string
		failed  string
	)
	err = d.store.WithinTx(ctx, func(fs ledger.FundStore) error {
		txs, applied, failed = nil, nil, ""
		for i, share := range plan {
			failed = share.Code
			fund, err := fs.GetOrCreateFund(ctx, projectID, share.Code, currency)
			if err != nil {
				return fmt.Errorf("get fund %s: %w", share.Code, err)
			}
			amount := amounts[i]
			if amount.IsZero() {
				applied = append(applied, share.Code)
				continue
			}
			tx := core.Transaction{
				ID:        uuid.NewString(),
				FundID:    fund.ID,
				ProjectID: projectID,
				PaymentID: payment.ID,
				Type:      core.Credit,
				Amount:    amount,
				Currency:  currency,
				Reference: reference,
				CreatedAt: createdAt,
			}
			if err := fs.AppendTransaction(ctx, tx); err != nil {
				return fmt.Errorf("append transaction for %s: %w", share.Code, err)
			}
			if _, err := fs.IncrementBalance(ctx, fund.ID, amount); err != nil {
				return fmt.Errorf("increment %s: %w", share.Code, err)
			}
			txs = append(txs, tx)
			applied = append(applied, share.Code)
		}
		failed = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return DistributionResult{}, err
		}
		return DistributionResult{}, &core.PartialFailureError{
			PaymentID: payment.ID,
			Applied:   applied,
			Failed:    failed,
			Err:       core.StorageError("distribute", err),
		}
	}

	if txs == nil {
		txs = []core.Transaction{}
	}
	var total core.Money
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	res := DistributionResult{
		PaymentID:         payment.ID,
		ProjectID:         projectID,
		Transactions:      txs,
		Allocation:        plan,
		PlanSource:        source,
		TotalAmount:       payment.Amount,
		DistributedAmount: total,
		Currency:          currency,
	}

	if d.invalidator != nil {
		d.invalidator.Invalidate()
	}
	d.structured.LogDistribution(ctx, res.PaymentID, res.ProjectID, total.Cents, currency, len(plan), string(source))
	d.publish(ctx, res)

	return res, nil
}

// publish never fails the distribution; the ledger already committed.
func (d *Distributor) publish(ctx context.Context, res DistributionResult) {
	if d.publisher == nil {
		d.logger.DebugContext(ctx, "AMQP publisher not configured, skipping distribution event", log.FieldPaymentID, res.PaymentID)
		return
	}
	msg := amqp.NewDistributionMessage(res.PaymentID, res.ProjectID, res.DistributedAmount.Cents, res.Currency, len(res.Transactions))
	if err := d.publisher.PublishDistribution(ctx, msg); err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish distribution event",
			log.FieldPaymentID, res.PaymentID,
			log.FieldError, err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, core.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return metrics.ResultInvalid
	default:
		return metrics.ResultFailed
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrPartialFailure):
		return log.ErrorTypePartial
	case errors.Is(err, core.ErrStorage):
		return log.ErrorTypeDatabase
	default:
		return log.ErrorTypeInternal
	}
}
