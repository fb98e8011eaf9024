// File: internal/service/triage.go
package service

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/analysis"
	"github.com/xkilldash9x/triage-cli/internal/browser"
	"github.com/xkilldash9x/triage-cli/internal/config"
	"github.com/xkilldash9x/triage-cli/internal/diagnostics"
	"github.com/xkilldash9x/triage-cli/internal/discovery"
	"github.com/xkilldash9x/triage-cli/internal/resource"
	"github.com/xkilldash9x/triage-cli/internal/store"
)

// Report is the aggregate output of one triage run against a page.
// Diagnostics carries the structured JSON form of every error the handler
// processed during the run.
type Report struct {
	Page         schemas.PageIdentity         `json:"page"`
	GeneratedAt  time.Time                    `json:"generatedAt"`
	Analysis     *schemas.AnalysisResult      `json:"analysis,omitempty"`
	Alternatives []schemas.AlternativeElement `json:"alternatives,omitempty"`
	Diagnostics  []jsoniter.RawMessage        `json:"diagnostics,omitempty"`
}

// Triage binds the diagnostic pipeline to one open page: discovery,
// structural and performance analysis, and error handling share the same
// driver and resource tracker.
type Triage struct {
	driver   browser.Driver
	finder   *discovery.Finder
	analyzer *analysis.Analyzer
	parallel *analysis.ParallelAnalyzer
	handler  *diagnostics.Handler
	logger   *zap.Logger
}

// NewTriage wires the per-page diagnostic components.
func NewTriage(driver browser.Driver, resources *resource.Manager, cfg config.Interface, history diagnostics.HistoryStore, logger *zap.Logger) *Triage {
	finder := discovery.NewFinder(driver, resources, cfg.Discovery(), logger)
	analyzer := analysis.NewAnalyzer(driver, logger)
	enricher := diagnostics.NewEnricher(finder, analyzer, logger)
	return &Triage{
		driver:   driver,
		finder:   finder,
		analyzer: analyzer,
		parallel: analysis.NewParallelAnalyzer(analyzer, analysis.NewMonitor(), logger),
		handler:  diagnostics.NewHandler(cfg.Diagnostics(), enricher, history, logger),
		logger:   logger.Named("triage"),
	}
}

// Handler exposes the error handler so callers can route their own failures
// through the same history and pattern detection.
func (t *Triage) Handler() *diagnostics.Handler {
	return t.handler
}

// Diagnose runs the full pipeline: page analysis (parallel when the
// complexity heuristic advises it), plus alternative-element discovery when
// criteria are supplied. Failures along the way are folded into the report
// rather than aborting it; only a missing page identity is fatal.
func (t *Triage) Diagnose(ctx context.Context, criteria schemas.SearchCriteria) (*Report, error) {
	identity, err := t.driver.Identity(ctx)
	if err != nil {
		return nil, t.handler.ProcessUnifiedError(ctx, err, schemas.ComponentUnifiedSystem, "diagnose", nil)
	}

	report := &Report{
		Page:        identity,
		GeneratedAt: time.Now().UTC(),
	}

	if t.analyzer.ShouldUseParallelAnalysis(ctx) {
		report.Analysis = t.parallel.RunParallelAnalysis(ctx)
	} else {
		report.Analysis = t.runSequentialAnalysis(ctx)
	}
	for _, stepErr := range report.Analysis.Errors {
		t.handler.ProcessUnifiedError(ctx, errors.New(stepErr.Error), schemas.ComponentPageAnalyzer, stepErr.Step, nil)
	}

	if !criteria.Empty() {
		alternatives, err := t.finder.FindAlternatives(ctx, criteria, 0)
		if err != nil {
			t.handler.ElementNotFound(ctx, err, "findAlternatives", criteria)
		} else {
			report.Alternatives = alternatives
		}
	}

	report.Diagnostics = t.collectDiagnostics()
	return report, nil
}

// runSequentialAnalysis mirrors the parallel result shape so consumers see
// one format regardless of the execution mode.
func (t *Triage) runSequentialAnalysis(ctx context.Context) *schemas.AnalysisResult {
	start := time.Now()
	result := &schemas.AnalysisResult{
		ResourceUsage: schemas.ResourceUsage{AnalysisSteps: 2},
	}

	structure, err := t.analyzer.AnalyzeStructure(ctx)
	if err != nil {
		result.Errors = append(result.Errors, schemas.StepError{Step: "structure-analysis", Error: err.Error()})
	} else {
		result.StructureAnalysis = structure
	}

	metrics, err := t.analyzer.AnalyzePerformance(ctx)
	if err != nil {
		result.Errors = append(result.Errors, schemas.StepError{Step: "performance-metrics", Error: err.Error()})
	} else {
		result.PerformanceMetrics = metrics
	}

	result.ExecutionTime = time.Since(start)
	return result
}

func (t *Triage) collectDiagnostics() []jsoniter.RawMessage {
	history := t.handler.History()
	out := make([]jsoniter.RawMessage, 0, len(history))
	for _, diagErr := range history {
		raw, err := diagErr.ToJSON()
		if err != nil {
			t.logger.Warn("Failed to serialize diagnostic error for report.", zap.Error(err))
			continue
		}
		out = append(out, raw)
	}
	return out
}

// nilStore avoids handing the handler a non-nil interface wrapping a nil
// pointer when persistence is disabled.
func nilStore(s *store.Store) diagnostics.HistoryStore {
	if s == nil {
		return nil
	}
	return s
}
