// internal/analysis/parallel.go
package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
)

// Step names as they appear in the result's error list.
const (
	stepStructureAnalysis  = "structure-analysis"
	stepPerformanceMetrics = "performance-metrics"
)

// ParallelAnalyzer runs structural and performance analysis as independent
// concurrent tasks. Tasks never cancel each other: a failed task lands as a
// step error while its sibling's result is still returned.
type ParallelAnalyzer struct {
	analyzer *Analyzer
	monitor  *Monitor
	logger   *zap.Logger
}

// NewParallelAnalyzer wraps an analyzer with timing and settle-all joining.
func NewParallelAnalyzer(analyzer *Analyzer, monitor *Monitor, logger *zap.Logger) *ParallelAnalyzer {
	if monitor == nil {
		monitor = NewMonitor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParallelAnalyzer{analyzer: analyzer, monitor: monitor, logger: logger}
}

// Monitor exposes the usage monitor backing this analyzer.
func (p *ParallelAnalyzer) Monitor() *Monitor {
	return p.monitor
}

// RunParallelAnalysis launches both analysis tasks, waits for every task to
// settle, and returns an aggregate result. The result is always non-nil;
// per-task failures are recorded in Errors rather than aborting the call.
func (p *ParallelAnalyzer) RunParallelAnalysis(ctx context.Context) *schemas.AnalysisResult {
	start := time.Now()
	result := &schemas.AnalysisResult{}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		structure  *schemas.PageStructure
		metrics    *schemas.PerformanceMetrics
		stepErrors []schemas.StepError
	)

	record := func(step string, err error) {
		mu.Lock()
		defer mu.Unlock()
		stepErrors = append(stepErrors, schemas.StepError{Step: step, Error: err.Error()})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		p.monitor.StartMonitoring(stepStructureAnalysis)
		out, err := p.analyzer.AnalyzeStructure(ctx)
		if _, stopErr := p.monitor.StopMonitoring(stepStructureAnalysis); stopErr != nil {
			p.logger.Warn("Usage monitor lost track of an analysis step.", zap.Error(stopErr))
		}
		if err != nil {
			p.logger.Warn("Structure analysis task failed.", zap.Error(err))
			record(stepStructureAnalysis, err)
			return
		}
		mu.Lock()
		structure = out
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		p.monitor.StartMonitoring(stepPerformanceMetrics)
		out, err := p.analyzer.AnalyzePerformance(ctx)
		if _, stopErr := p.monitor.StopMonitoring(stepPerformanceMetrics); stopErr != nil {
			p.logger.Warn("Usage monitor lost track of an analysis step.", zap.Error(stopErr))
		}
		if err != nil {
			p.logger.Warn("Performance metrics task failed.", zap.Error(err))
			record(stepPerformanceMetrics, err)
			return
		}
		mu.Lock()
		metrics = out
		mu.Unlock()
	}()
	wg.Wait()

	result.StructureAnalysis = structure
	result.PerformanceMetrics = metrics
	result.Errors = stepErrors
	result.ExecutionTime = time.Since(start)
	result.ResourceUsage = schemas.ResourceUsage{
		MemoryUsage:   heapUsed(),
		CPUTime:       0,
		PeakMemory:    p.monitor.PeakMemoryUsage(),
		AnalysisSteps: 2,
	}
	return result
}
