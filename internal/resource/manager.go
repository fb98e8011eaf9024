// internal/resource/manager.go
package resource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/internal/config"
)

// Disposable is any external reference whose release must be guaranteed.
// Dispose errors are reported for logging but never treated as fatal.
type Disposable interface {
	Dispose(ctx context.Context) error
}

// trackedResource is one registry entry. The manager owns the registry; the
// resource itself belongs to whoever tracked it until disposal.
type trackedResource struct {
	id        string
	resource  Disposable
	createdAt time.Time
}

// Manager tracks external browser-side handles and guarantees their eventual
// disposal: explicitly via Untrack/DisposeAll, or by a background TTL sweep
// that reaps anything left untouched past the configured dispose timeout.
//
// The registry follows a remove-before-act discipline: an entry is deleted
// from the map before its dispose method runs, so a concurrent sweep and an
// explicit disposal of the same resource cannot double-act. Whichever path
// removes the entry first performs the disposal; the other finds nothing.
type Manager struct {
	cfg    config.ResourcesConfig
	logger *zap.Logger

	mu        sync.Mutex
	resources map[string]*trackedResource
	closed    bool

	counter atomic.Uint64

	sweepStop chan struct{}
	sweepDone chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates a manager. The TTL sweep does not run until Start is
// called; callers that only want explicit disposal can skip Start entirely.
func NewManager(cfg config.ResourcesConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logger.Named("resource_manager"),
		resources: make(map[string]*trackedResource),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
}

// Start launches the background sweep. It runs every DisposeTimeout/2 and
// disposes entries older than DisposeTimeout. Safe to call once; subsequent
// calls are no-ops.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.sweepLoop()
	})
}

// Track registers a resource and returns its process-unique id.
// Ids are monotonically assigned and never reused within a process.
func (m *Manager) Track(res Disposable) string {
	id := fmt.Sprintf("res-%d", m.counter.Add(1))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[id] = &trackedResource{
		id:        id,
		resource:  res,
		createdAt: time.Now(),
	}
	return id
}

// Untrack removes the bookkeeping entry without disposing. The caller
// attests the resource is already released. Returns false if the id was not
// tracked (already disposed, swept, or never registered).
func (m *Manager) Untrack(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return false
	}
	delete(m.resources, id)
	return true
}

// take atomically removes and returns an entry, implementing the
// remove-before-act half of the disposal race discipline.
func (m *Manager) take(id string) (Disposable, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.resources[id]
	if !ok {
		return nil, false
	}
	delete(m.resources, id)
	return entry.resource, true
}

// ActiveCount returns how many resources are currently tracked.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

// DisposeAll disposes every tracked resource concurrently via a settle-all
// join. A single resource failing is logged and does not block the others.
// The registry is cleared regardless of individual outcomes.
func (m *Manager) DisposeAll(ctx context.Context) {
	m.mu.Lock()
	snapshot := make([]*trackedResource, 0, len(m.resources))
	for _, entry := range m.resources {
		snapshot = append(snapshot, entry)
	}
	m.resources = make(map[string]*trackedResource)
	m.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, entry := range snapshot {
		wg.Add(1)
		go func(e *trackedResource) {
			defer wg.Done()
			if err := e.resource.Dispose(ctx); err != nil {
				m.logger.Warn("Failed to dispose tracked resource.",
					zap.String("resource_id", e.id),
					zap.Error(err),
				)
			}
		}(entry)
	}
	wg.Wait()

	m.logger.Debug("Disposed all tracked resources.", zap.Int("count", len(snapshot)))
}

// Close stops the sweep and disposes everything still tracked.
func (m *Manager) Close(ctx context.Context) {
	m.stopOnce.Do(func() {
		close(m.sweepStop)
	})
	m.startOnce.Do(func() {
		// Sweep never started; unblock the waiter below.
		close(m.sweepDone)
	})
	<-m.sweepDone

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.DisposeAll(ctx)
}

func (m *Manager) sweepLoop() {
	defer close(m.sweepDone)

	interval := m.cfg.DisposeTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

// sweepExpired disposes every entry older than the TTL. Ids are snapshotted
// first so entries removed mid-sweep by an explicit disposal are simply
// absent when take runs; that race is a no-op, not an error.
func (m *Manager) sweepExpired() {
	cutoff := time.Now().Add(-m.cfg.DisposeTimeout)

	m.mu.Lock()
	expired := make([]string, 0)
	for id, entry := range m.resources {
		if entry.createdAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DisposeTimeout)
	defer cancel()

	for _, id := range expired {
		res, ok := m.take(id)
		if !ok {
			continue
		}
		if err := res.Dispose(ctx); err != nil {
			m.logger.Warn("Sweep failed to dispose stale resource.",
				zap.String("resource_id", id),
				zap.Error(err),
			)
		} else {
			m.logger.Debug("Sweep disposed stale resource.", zap.String("resource_id", id))
		}
	}
}
