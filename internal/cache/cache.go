// Package cache holds the TTL caches used for report summaries.
package cache

import (
	"sync"
	"time"

	"fincore/internal/log"
)

// Cache is a keyed store whose entries may disappear at any time.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Clear()
	Size() int
}

// Cleaner is a cache that can drop its expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on an interval.
type Manager struct {
	mu      sync.Mutex
	caches  []Cleaner
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  *log.Logger
}

func NewManager() *Manager {
	return &Manager{
		stop:   make(chan struct{}),
		logger: log.Default(log.ComponentCache),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	m.caches = append(m.caches, c)
	m.mu.Unlock()
}

// StartCleanup starts the sweeper. Calling it more than once has no effect.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped != nil {
		return
	}
	m.stopped = make(chan struct{})
	go m.run(interval)
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		}
	}
}

func (m *Manager) sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	n := 0
	for _, c := range caches {
		n += c.CleanExpired()
	}
	return n
}

// Stop halts the sweeper and waits for it. Safe to call repeatedly and
// without StartCleanup.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stop) })
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}
