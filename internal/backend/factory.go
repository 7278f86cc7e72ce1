// Package backend opens the ledger store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"fincore/internal/ledger"
	"fincore/internal/ledger/memory"
	"fincore/internal/log"
	"fincore/internal/storage"
)

// CleanupFunc releases the resources held by a store.
type CleanupFunc func() error

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Result is an opened store and its cleanup.
type Result struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Ready returns a readiness probe for the store. Stores without Ping are
// always ready.
func (r *Result) Ready() func(context.Context) error {
	p, ok := r.Store.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping
}

// Factory creates stores based on configuration.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*Result, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new store factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(ctx, config)
	default:
		return f.createMemoryStore()
	}
}

func (f *DefaultFactory) createSQLiteStore(ctx context.Context, config Config) (*Result, error) {
	if config.SQLiteDBPath == "" {
		return nil, fmt.Errorf("sqlite backend requires a database path")
	}
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, err
	}

	f.logger.Info("Initialized SQLite backend", "backend", SQLiteBackend.String(), "db_path", config.SQLiteDBPath)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryStore() (*Result, error) {
	store := memory.New()
	f.logger.Info("Initialized memory backend", "backend", MemoryBackend.String())
	return &Result{Store: store, Cleanup: store.Close}, nil
}
