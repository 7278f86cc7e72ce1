package cli

import (
	"time"

	"fincore/internal/cache"
	"fincore/internal/config"
	"fincore/internal/core"
	"fincore/internal/ledger"
	"fincore/internal/metrics"
	"fincore/internal/services"
)

// Services is the engine assembled over one store.
type Services struct {
	Summaries   *services.SummaryService
	Distributor *services.Distributor
	Projections *services.ProjectionService
	Reconciler  *services.Reconciler

	caches *cache.Manager
}

// NewServices wires the engine. publisher may be nil, which disables
// distribution events. A positive cache TTL starts a background sweep of
// expired summaries; call Close to stop it.
func NewServices(store ledger.Store, cfg *config.Config, m *metrics.Metrics, publisher services.EventPublisher) *Services {
	caches := cache.NewManager()

	summaryOpts := []services.SummaryOption{
		services.WithRecentLimit(cfg.RecentTransactionsLimit),
		services.WithSummaryMetrics(m),
	}
	if cfg.SummaryCacheEnabled() {
		lru := cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
		caches.Register(lru)
		caches.StartCleanup(max(cfg.SummaryCacheTTL, time.Second))
		summaryOpts = append(summaryOpts, services.WithSummaryCache(lru))
	}
	summaries := services.NewSummaryService(store, summaryOpts...)

	distOpts := []services.DistributorOption{
		services.WithInvalidator(summaries),
		services.WithMetrics(m),
	}
	if publisher != nil {
		distOpts = append(distOpts, services.WithPublisher(publisher))
	}

	return &Services{
		Summaries:   summaries,
		Distributor: services.NewDistributor(store, services.NewPlanResolver(store), distOpts...),
		Projections: services.NewProjectionService(summaries, m),
		Reconciler:  services.NewReconciler(store, summaries, m),
		caches:      caches,
	}
}

// Close stops the cache sweeper.
func (s *Services) Close() {
	s.caches.Stop()
}
