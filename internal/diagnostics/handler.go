// internal/diagnostics/handler.go
package diagnostics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/config"
)

// Pattern detection parameters: an error recurs when at least
// patternMinOccurrences of the last patternLookback same-component,
// same-operation errors fall inside the configured window.
const (
	patternLookback       = 5
	patternMinOccurrences = 3
	maxSharedSuggestions  = 3
)

// HistoryStore persists processed diagnostic errors. Optional; failures are
// logged, never propagated.
type HistoryStore interface {
	SaveDiagnostic(ctx context.Context, diagErr *DiagnosticError) error
}

// Handler is the top-level diagnostic orchestrator. It normalizes raw errors,
// layers on contextual and pattern-based suggestions, keeps a capped rolling
// history, and optionally persists each processed error.
type Handler struct {
	cfg      config.DiagnosticsConfig
	enricher *Enricher
	store    HistoryStore
	logger   *zap.Logger
	limiter  *rate.Limiter

	mu      sync.Mutex
	history []*DiagnosticError
}

// NewHandler builds a handler. enricher and store may be nil; enrichment and
// persistence are then skipped.
func NewHandler(cfg config.DiagnosticsConfig, enricher *Enricher, store HistoryStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.EnrichmentRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EnrichmentRate), 1)
	}
	return &Handler{
		cfg:      cfg,
		enricher: enricher,
		store:    store,
		logger:   logger,
		limiter:  limiter,
	}
}

// ProcessUnifiedError normalizes err into a DiagnosticError, applies
// performance classification, contextual and pattern-based suggestions,
// records it in the rolling history, and persists it when a store is
// configured. The returned error is always usable even when every
// enrichment stage fails.
func (h *Handler) ProcessUnifiedError(ctx context.Context, err error, component schemas.Component, operation string, errCtx map[string]interface{}) *DiagnosticError {
	diagErr := h.normalize(err, component, operation, errCtx)

	if h.cfg.PerformanceThreshold > 0 && diagErr.ExecutionTime > h.cfg.PerformanceThreshold {
		diagErr.PerformanceImpact = classifyDuration(diagErr.ExecutionTime, h.cfg.PerformanceThreshold)
		diagErr.AddSuggestion(fmt.Sprintf("Operation took %v against a budget of %v; consider raising the timeout or simplifying the target page.",
			diagErr.ExecutionTime, h.cfg.PerformanceThreshold))
		diagErr.AddSuggestion("Break the operation into smaller steps so a single slow stage does not exceed the budget.")
	}

	if h.cfg.ContextualSuggestions {
		h.applyContextualSuggestions(diagErr)
	}

	h.mu.Lock()
	h.applyPatternSuggestionsLocked(diagErr)
	h.history = append(h.history, diagErr)
	if overflow := len(h.history) - h.cfg.MaxErrorHistory; overflow > 0 && h.cfg.MaxErrorHistory > 0 {
		h.history = h.history[overflow:]
	}
	h.mu.Unlock()

	h.persist(ctx, diagErr)
	return diagErr
}

// ElementNotFound enriches and processes an element-lookup failure. The
// enrichment pass hits the browser and is rate limited; when throttled, the
// error is processed without page-derived context.
func (h *Handler) ElementNotFound(ctx context.Context, err error, operation string, criteria schemas.SearchCriteria) *DiagnosticError {
	diagErr := From(err, schemas.ComponentElementDiscovery, operation, nil)
	if h.enricher != nil && h.allowEnrichment() {
		diagErr = h.enricher.EnrichElementNotFound(ctx, diagErr, criteria)
	}
	return h.ProcessUnifiedError(ctx, diagErr, schemas.ComponentElementDiscovery, operation, nil)
}

// Timeout enriches and processes an operation-timeout failure.
func (h *Handler) Timeout(ctx context.Context, err error, component schemas.Component, operation string, executionTime time.Duration) *DiagnosticError {
	diagErr := From(err, component, operation, nil)
	diagErr.ExecutionTime = executionTime
	if h.enricher != nil && h.allowEnrichment() {
		diagErr = h.enricher.EnrichTimeout(ctx, diagErr, executionTime, h.cfg.PerformanceThreshold)
	}
	return h.ProcessUnifiedError(ctx, diagErr, component, operation, nil)
}

// BatchFailure enriches and processes a mid-batch failure.
func (h *Handler) BatchFailure(ctx context.Context, err error, component schemas.Component, operation, failedStep string, executedSteps []string) *DiagnosticError {
	diagErr := From(err, component, operation, nil)
	if h.enricher != nil {
		diagErr = h.enricher.EnrichBatchFailure(diagErr, failedStep, executedSteps)
	}
	return h.ProcessUnifiedError(ctx, diagErr, component, operation, nil)
}

// History returns a copy of the rolling error history, oldest first.
func (h *Handler) History() []*DiagnosticError {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*DiagnosticError, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Handler) allowEnrichment() bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow()
}

func (h *Handler) normalize(err error, component schemas.Component, operation string, errCtx map[string]interface{}) *DiagnosticError {
	if diagErr, ok := err.(*DiagnosticError); ok {
		for key, value := range errCtx {
			diagErr.SetContext(key, value)
		}
		return diagErr
	}
	return From(err, component, operation, errCtx)
}

func (h *Handler) applyContextualSuggestions(diagErr *DiagnosticError) {
	switch diagErr.Component {
	case schemas.ComponentPageAnalyzer:
		diagErr.AddSuggestion("Pages with many elements or iframes slow analysis; scope queries to a container element.")
		diagErr.AddSuggestion("Cross-origin iframes cannot be inspected; check the frame list in the structure payload.")
	case schemas.ComponentElementDiscovery:
		diagErr.AddSuggestion("Elements without ARIA labels weaken role-based matching; prefer text or attribute criteria.")
		diagErr.AddSuggestion("An open modal can hide the target from selector queries; dismiss overlays before retrying.")
	case schemas.ComponentResourceManager:
		diagErr.AddSuggestion("High memory usage usually means undisposed element handles; release batches promptly.")
	}

	lowerOp := strings.ToLower(diagErr.Operation)
	if strings.Contains(lowerOp, "parallel") {
		diagErr.AddSuggestion("Parallel analysis settles all tasks; inspect per-step errors for the failing task instead of rerunning everything.")
	}
	if strings.Contains(lowerOp, "timeout") {
		diagErr.AddSuggestion("Repeated timeouts suggest the budget is too tight for this page; raise it or reduce page load work.")
	}
}

// applyPatternSuggestionsLocked must be called with h.mu held. The new error
// is not yet in the history.
func (h *Handler) applyPatternSuggestionsLocked(diagErr *DiagnosticError) {
	cutoff := time.Now().Add(-h.cfg.PatternWindow)

	var recent []*DiagnosticError
	for i := len(h.history) - 1; i >= 0 && len(recent) < patternLookback; i-- {
		prev := h.history[i]
		if prev.Component != diagErr.Component || prev.Operation != diagErr.Operation {
			continue
		}
		if prev.Timestamp.Before(cutoff) {
			break
		}
		recent = append(recent, prev)
	}
	if len(recent) < patternMinOccurrences {
		return
	}

	diagErr.AddSuggestion(fmt.Sprintf("This failure has recurred %d time(s) in the last %v for %s:%s; the cause is likely systemic, not transient.",
		len(recent), h.cfg.PatternWindow, diagErr.Component, diagErr.Operation))

	type freq struct {
		suggestion string
		count      int
	}
	counts := make(map[string]int)
	var order []string
	for _, prev := range recent {
		seen := make(map[string]bool)
		for _, s := range prev.Suggestions {
			if seen[s] {
				continue
			}
			seen[s] = true
			if counts[s] == 0 {
				order = append(order, s)
			}
			counts[s]++
		}
	}
	var shared []freq
	for _, s := range order {
		if counts[s] > 1 {
			shared = append(shared, freq{suggestion: s, count: counts[s]})
		}
	}
	sort.SliceStable(shared, func(i, j int) bool { return shared[i].count > shared[j].count })
	if len(shared) > maxSharedSuggestions {
		shared = shared[:maxSharedSuggestions]
	}
	for _, f := range shared {
		diagErr.AddSuggestion(f.suggestion)
	}
}

func (h *Handler) persist(ctx context.Context, diagErr *DiagnosticError) {
	if h.store == nil {
		return
	}
	if err := h.store.SaveDiagnostic(ctx, diagErr); err != nil {
		h.logger.Warn("Failed to persist diagnostic error.", zap.Error(err))
	}
}
