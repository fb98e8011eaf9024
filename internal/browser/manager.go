// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/triage-cli/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the browser process and hands out isolated sessions. Session
// creation is bounded by a weighted semaphore sized from
// browser.concurrency; a slot is released when the session closes.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	controllerCtx context.Context

	sem                 *semaphore.Weighted
	contextCreationLock sync.Mutex
	wg                  sync.WaitGroup

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	closed bool
}

// NewManager creates a browser manager. The browser process itself is not
// launched until the first session is requested.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
		sem:    semaphore.NewWeighted(concurrency),
	}
}

// initialize launches the browser process and establishes the controller
// context used for browser-level CDP commands.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser process.", zap.Bool("headless", m.cfg.Headless))

		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !m.cfg.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if m.cfg.IgnoreTLSErrors {
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		}
		if m.cfg.DisableCache {
			opts = append(opts, chromedp.Flag("disable-application-cache", true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx)

		// Run a no-op to force the browser to start before sessions arrive.
		if err := chromedp.Run(m.browserCtx); err != nil {
			m.initErr = fmt.Errorf("failed to start browser: %w", err)
			m.browserCancel()
			m.allocCancel()
			return
		}

		c := chromedp.FromContext(m.browserCtx)
		m.controllerCtx = cdp.WithExecutor(m.browserCtx, c.Browser)

		m.logger.Info("Browser manager initialized.")
	})
	return m.initErr
}

// NewSession creates an isolated browser context and target. The call blocks
// until a concurrency slot is available or ctx is cancelled.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.mu.Unlock()

	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire session slot: %w", err)
	}

	m.wg.Add(1)
	release := func() {
		m.sem.Release(1)
		m.wg.Done()
	}

	sess, err := newSession(m.browserCtx, m.controllerCtx, &m.contextCreationLock, m.cfg, m.logger, release)
	if err != nil {
		release()
		return nil, err
	}
	return sess, nil
}

// Shutdown waits for open sessions to close, then tears down the browser.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown context cancelled while waiting for sessions.")
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Timeout waiting for sessions to close; forcing browser shutdown.")
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shut down.")
}
