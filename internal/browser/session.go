// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/config"
)

const (
	evaluateTimeout     = 30 * time.Second
	disposeContextGrace = 10 * time.Second
)

// Session is one isolated browser context plus a target, implementing the
// Driver capability the diagnostic core consumes.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	taskCtx              context.Context
	taskCancel           context.CancelFunc
	browserControllerCtx context.Context
	browserContextID     cdp.BrowserContextID
	release              func()

	mu          sync.Mutex
	closed      bool
	releaseOnce sync.Once
}

func newSession(
	parentBrowserCtx context.Context,
	browserControllerCtx context.Context,
	contextCreationLock *sync.Mutex,
	cfg config.BrowserConfig,
	logger *zap.Logger,
	release func(),
) (*Session, error) {
	id := uuid.New().String()
	l := logger.With(zap.String("session_id", id))

	contextCreationLock.Lock()
	defer contextCreationLock.Unlock()

	browserContextID, err := target.CreateBrowserContext().Do(browserControllerCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	targetID, err := target.CreateTarget("about:blank").
		WithBrowserContextID(browserContextID).
		Do(browserControllerCtx)
	if err != nil {
		bestEffortDisposeBrowserContext(browserControllerCtx, browserContextID, l)
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	taskCtx, taskCancel := chromedp.NewContext(parentBrowserCtx, chromedp.WithTargetID(targetID))

	s := &Session{
		id:                   id,
		logger:               l,
		cfg:                  cfg,
		taskCtx:              taskCtx,
		taskCancel:           taskCancel,
		browserControllerCtx: browserControllerCtx,
		browserContextID:     browserContextID,
		release:              release,
	}
	l.Debug("Browser session created.", zap.String("browser_context_id", string(browserContextID)))
	return s, nil
}

func bestEffortDisposeBrowserContext(controllerCtx context.Context, id cdp.BrowserContextID, logger *zap.Logger) {
	if controllerCtx.Err() != nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(controllerCtx, 5*time.Second)
	defer cancel()
	if err := target.DisposeBrowserContext(id).Do(cleanupCtx); err != nil {
		logger.Debug("Failed best-effort cleanup of orphaned browser context.",
			zap.String("browser_context_id", string(id)), zap.Error(err))
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Navigate loads the url and waits for the document body, then for the
// configured post-load stabilization window.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.runContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if s.cfg.PostLoadWait > 0 {
		select {
		case <-time.After(s.cfg.PostLoadWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// QueryAll resolves a selector to live element handles. Each handle pins a
// remote object; the caller owns their disposal.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]ElementHandle, error) {
	if err := s.taskCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageClosed, err)
	}
	runCtx, cancel := s.runContext(ctx, evaluateTimeout)
	defer cancel()

	var handles []ElementHandle
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		obj, exc, err := runtime.Evaluate(buildQueryExpression(selector)).Do(c)
		if err != nil {
			return fmt.Errorf("query evaluation failed: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("query evaluation threw: %s", exc.Text)
		}
		if obj == nil || obj.ObjectID == "" {
			return nil
		}
		// The array itself is released here; the element entries stay alive
		// through their own object ids.
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(c)
		}()

		props, _, _, _, err := runtime.GetProperties(obj.ObjectID).WithOwnProperties(true).Do(c)
		if err != nil {
			return fmt.Errorf("failed to enumerate query results: %w", err)
		}
		for _, p := range props {
			if p.Value == nil || p.Value.ObjectID == "" {
				continue
			}
			if _, err := strconv.Atoi(p.Name); err != nil {
				// Skip "length" and other non-index properties.
				continue
			}
			handles = append(handles, &cdpElement{session: s, objectID: p.Value.ObjectID})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// Evaluate runs an expression in the page context, unmarshaling the result
// into out when non-nil.
func (s *Session) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if err := s.taskCtx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPageClosed, err)
	}
	runCtx, cancel := s.runContext(ctx, evaluateTimeout)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(expression, out))
}

// Identity reports the current page url and title.
func (s *Session) Identity(ctx context.Context) (schemas.PageIdentity, error) {
	if err := s.taskCtx.Err(); err != nil {
		return schemas.PageIdentity{}, fmt.Errorf("%w: %v", ErrPageClosed, err)
	}
	runCtx, cancel := s.runContext(ctx, evaluateTimeout)
	defer cancel()

	var identity schemas.PageIdentity
	err := chromedp.Run(runCtx,
		chromedp.Location(&identity.URL),
		chromedp.Title(&identity.Title),
	)
	if err != nil {
		return schemas.PageIdentity{}, fmt.Errorf("failed to read page identity: %w", err)
	}
	return identity, nil
}

// runContext derives a bounded chromedp context that also dies when the
// caller's context does.
func (s *Session) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.taskCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Close tears down the target and disposes the isolated browser context.
// Idempotent; the concurrency slot is released exactly once.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.taskCancel()

	if s.browserContextID != "" && s.browserControllerCtx.Err() == nil {
		timeoutCtx, cancel := context.WithTimeout(s.browserControllerCtx, disposeContextGrace)
		defer cancel()
		if err := target.DisposeBrowserContext(s.browserContextID).Do(timeoutCtx); err != nil {
			if s.browserControllerCtx.Err() == nil {
				s.logger.Warn("Failed to dispose of browser context. It may be orphaned.",
					zap.String("browser_context_id", string(s.browserContextID)),
					zap.Error(err),
				)
			}
		}
	}

	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
