package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"fincore/internal/cache"
	"fincore/internal/core"
	"fincore/internal/ledger"
	"fincore/internal/log"
	"fincore/internal/metrics"
)

// SummaryService aggregates funds, transactions, payments and licenses for
// a scope. Results may be cached; Invalidate drops them.
type SummaryService struct {
	reader      ledger.ReportReader
	cache       cache.Cache[core.Summary]
	recentLimit int
	metrics     *metrics.Metrics
	logger      *log.Logger

	// mu orders cache writes against Invalidate. generation counts
	// invalidations and is read under mu.
	mu         sync.Mutex
	generation uint64
}

type SummaryOption func(*SummaryService)

// WithSummaryCache caches summaries per scope key.
func WithSummaryCache(c cache.Cache[core.Summary]) SummaryOption {
	return func(s *SummaryService) { s.cache = c }
}

// WithRecentLimit sets how many transactions a summary lists.
func WithRecentLimit(n int) SummaryOption {
	return func(s *SummaryService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func WithSummaryMetrics(m *metrics.Metrics) SummaryOption {
	return func(s *SummaryService) { s.metrics = m }
}

func NewSummaryService(reader ledger.ReportReader, opts ...SummaryOption) *SummaryService {
	s := &SummaryService{
		reader:      reader,
		recentLimit: core.DefaultRecentTransactions,
		logger:      log.Default(log.ComponentSummary),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns the summary for scope. The four loads run concurrently
// and the first failure cancels the rest.
func (s *SummaryService) Summarize(ctx context.Context, scope core.Scope) (core.Summary, error) {
	if err := scope.Validate(); err != nil {
		return core.Summary{}, fmt.Errorf("%w: project_id or account_id is required", err)
	}

	key := scope.Key()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.SummaryCache(true)
			return cached, nil
		}
		s.metrics.SummaryCache(false)
	}
	gen := s.currentGeneration()

	var (
		funds    []core.Fund
		recent   []core.Transaction
		payments []core.Payment
		licenses int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		funds, err = s.reader.ListFunds(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.reader.RecentTransactions(gctx, scope, s.recentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.reader.ListPayments(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		licenses, err = s.reader.CountActiveLicenses(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Summary load failed", log.FieldScope, key, log.FieldError, err)
		return core.Summary{}, core.StorageError("summarize", err)
	}

	summary := core.BuildSummary(scope, funds, recent, payments, licenses)

	s.store(key, gen, summary)
	return summary, nil
}

func (s *SummaryService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// store caches summary unless an invalidation happened since gen was read.
func (s *SummaryService) store(key string, gen uint64, summary core.Summary) bool {
	if s.cache == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.cache.Set(key, summary)
	return true
}

// Insights summarises scope and runs the default insight rules on it.
func (s *SummaryService) Insights(ctx context.Context, scope core.Scope) ([]core.Insight, core.Summary, error) {
	summary, err := s.Summarize(ctx, scope)
	if err != nil {
		return nil, core.Summary{}, err
	}
	return core.GenerateInsights(summary), summary, nil
}

// Invalidate drops every cached summary.
func (s *SummaryService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cache != nil {
		s.cache.Clear()
	}
}
