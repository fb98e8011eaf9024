// internal/resource/handle.go
package resource

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrDisposed is returned by any access to a SmartHandle after Dispose.
var ErrDisposed = errors.New("resource handle has been disposed")

// SmartHandle owns one tracked resource's id plus a non-owning reference to
// its manager. All access after Dispose fails with ErrDisposed, and the
// underlying dispose method is invoked at most once.
type SmartHandle struct {
	id     string
	res    Disposable
	mgr    *Manager
	logger *zap.Logger

	mu       sync.Mutex
	disposed bool
}

// NewSmartHandle tracks res with the manager and wraps it. The manager owns
// the registry entry; the handle merely borrows a reference back to it.
func NewSmartHandle(mgr *Manager, res Disposable, logger *zap.Logger) *SmartHandle {
	return &SmartHandle{
		id:     mgr.Track(res),
		res:    res,
		mgr:    mgr,
		logger: logger.Named("smart_handle"),
	}
}

// ID returns the tracked resource id.
func (h *SmartHandle) ID() string {
	return h.id
}

// Resource returns the wrapped resource, or ErrDisposed after Dispose.
func (h *SmartHandle) Resource() (Disposable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil, ErrDisposed
	}
	return h.res, nil
}

// Disposed reports whether Dispose has been called.
func (h *SmartHandle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// Dispose releases the underlying resource. It is idempotent: the underlying
// call happens at most once, failures are logged rather than propagated, and
// the handle unregisters itself from the manager regardless of the outcome.
func (h *SmartHandle) Dispose(ctx context.Context) {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	h.mu.Unlock()

	// take removes the registry entry before acting, so a sweep racing us
	// finds nothing and the underlying dispose runs exactly once.
	res, ok := h.mgr.take(h.id)
	if !ok {
		// Already reaped by the sweep or DisposeAll.
		return
	}
	if err := res.Dispose(ctx); err != nil {
		h.logger.Warn("Failed to dispose resource via smart handle.",
			zap.String("resource_id", h.id),
			zap.Error(err),
		)
	}
}

// SmartHandleBatch groups handles so a caller can release a whole discovery
// pass in one call.
type SmartHandleBatch struct {
	mu      sync.Mutex
	handles []*SmartHandle
}

// NewSmartHandleBatch creates an empty batch.
func NewSmartHandleBatch() *SmartHandleBatch {
	return &SmartHandleBatch{}
}

// Add appends a handle to the batch.
func (b *SmartHandleBatch) Add(h *SmartHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handles = append(b.handles, h)
}

// Len returns the number of handles currently held.
func (b *SmartHandleBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// DisposeAll disposes every member via a settle-all join and clears the
// list. Calling it again on an emptied batch is a no-op.
func (b *SmartHandleBatch) DisposeAll(ctx context.Context) {
	b.mu.Lock()
	handles := b.handles
	b.handles = nil
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *SmartHandle) {
			defer wg.Done()
			h.Dispose(ctx)
		}(h)
	}
	wg.Wait()
}
