// internal/analysis/analyzer.go
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/browser"
)

// Thresholds for the parallel-analysis heuristic. Pages below both are cheap
// enough that sequential analysis wins by skipping the coordination cost.
const (
	parallelElementThreshold = 1500
	parallelFrameThreshold   = 3
)

// Analyzer runs structural and performance analysis against a live page.
type Analyzer struct {
	driver browser.Driver
	logger *zap.Logger
}

// NewAnalyzer wires an analyzer to a page driver.
func NewAnalyzer(driver browser.Driver, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{driver: driver, logger: logger}
}

// AnalyzeStructure evaluates the structure collector in the page. If live
// evaluation fails for a reason other than the page going away, it falls back
// to exporting the document and parsing it offline, which loses computed
// style fidelity but still yields frame and element counts.
func (a *Analyzer) AnalyzeStructure(ctx context.Context) (*schemas.PageStructure, error) {
	if a.driver == nil {
		return nil, fmt.Errorf("structure analysis requires a page driver")
	}

	var structure schemas.PageStructure
	err := a.driver.Evaluate(ctx, structureScript, &structure)
	if err == nil {
		return &structure, nil
	}
	if browser.IsPageClosed(err) || ctx.Err() != nil {
		return nil, fmt.Errorf("structure analysis: %w", err)
	}

	a.logger.Warn("Live structure analysis failed, falling back to snapshot.", zap.Error(err))
	var html string
	if snapErr := a.driver.Evaluate(ctx, snapshotScript, &html); snapErr != nil {
		return nil, fmt.Errorf("structure analysis: %w (snapshot fallback: %v)", err, snapErr)
	}
	snapshot, snapErr := AnalyzeSnapshot(html)
	if snapErr != nil {
		return nil, fmt.Errorf("structure analysis: %w (snapshot fallback: %v)", err, snapErr)
	}
	return snapshot, nil
}

// AnalyzePerformance samples navigation timing and resource counts.
func (a *Analyzer) AnalyzePerformance(ctx context.Context) (*schemas.PerformanceMetrics, error) {
	if a.driver == nil {
		return nil, fmt.Errorf("performance analysis requires a page driver")
	}
	var metrics schemas.PerformanceMetrics
	if err := a.driver.Evaluate(ctx, performanceScript, &metrics); err != nil {
		return nil, fmt.Errorf("performance analysis: %w", err)
	}
	return &metrics, nil
}

// ShouldUseParallelAnalysis estimates page complexity and advises whether
// splitting structure and performance analysis into concurrent tasks is
// worth the overhead. Callers are free to ignore the advice; errors during
// estimation default to sequential.
func (a *Analyzer) ShouldUseParallelAnalysis(ctx context.Context) bool {
	if a.driver == nil {
		return false
	}
	var complexity struct {
		ElementCount int `json:"elementCount"`
		FrameCount   int `json:"frameCount"`
	}
	if err := a.driver.Evaluate(ctx, complexityScript, &complexity); err != nil {
		a.logger.Debug("Complexity estimate failed, defaulting to sequential analysis.", zap.Error(err))
		return false
	}
	return complexity.ElementCount >= parallelElementThreshold ||
		complexity.FrameCount >= parallelFrameThreshold
}
