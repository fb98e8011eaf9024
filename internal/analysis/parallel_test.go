// internal/analysis/parallel_test.go
package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/browser/browsertest"
)

func newParallelFixture(evaluate func(expression string, out interface{}) error) *ParallelAnalyzer {
	driver := browsertest.NewDriver()
	driver.EvaluateFn = evaluate
	analyzer := NewAnalyzer(driver, zap.NewNop())
	return NewParallelAnalyzer(analyzer, NewMonitor(), zap.NewNop())
}

func TestRunParallelAnalysisBothSucceed(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newParallelFixture(func(expression string, out interface{}) error {
		switch {
		case isStructureExpr(expression):
			out.(*schemas.PageStructure).Elements.TotalVisible = 10
		case isPerformanceExpr(expression):
			out.(*schemas.PerformanceMetrics).ResourceCount = 5
		default:
			return errors.New("unexpected expression")
		}
		return nil
	})

	result := p.RunParallelAnalysis(context.Background())
	require.NotNil(t, result)
	require.NotNil(t, result.StructureAnalysis)
	require.NotNil(t, result.PerformanceMetrics)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 10, result.StructureAnalysis.Elements.TotalVisible)
	assert.Equal(t, 5, result.PerformanceMetrics.ResourceCount)

	assert.Greater(t, result.ExecutionTime, time.Duration(0))
	assert.Equal(t, 2, result.ResourceUsage.AnalysisSteps)
	assert.Zero(t, result.ResourceUsage.CPUTime)
	assert.Greater(t, result.ResourceUsage.PeakMemory, uint64(0))
	assert.Len(t, p.Monitor().Timeline(), 2)
}

func TestRunParallelAnalysisPerformanceFailureIsIsolated(t *testing.T) {
	p := newParallelFixture(func(expression string, out interface{}) error {
		switch {
		case isStructureExpr(expression):
			out.(*schemas.PageStructure).Elements.TotalVisible = 3
			return nil
		case isPerformanceExpr(expression):
			return errors.New("performance API unavailable")
		}
		return errors.New("unexpected expression")
	})

	result := p.RunParallelAnalysis(context.Background())
	require.NotNil(t, result)
	require.NotNil(t, result.StructureAnalysis, "sibling result survives the failure")
	assert.Nil(t, result.PerformanceMetrics)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "performance-metrics", result.Errors[0].Step)
	assert.Contains(t, result.Errors[0].Error, "performance API unavailable")
}

func TestRunParallelAnalysisBothFail(t *testing.T) {
	p := newParallelFixture(func(expression string, out interface{}) error {
		return errors.New("page is hosed")
	})

	result := p.RunParallelAnalysis(context.Background())
	require.NotNil(t, result, "a result is always returned")
	assert.Nil(t, result.StructureAnalysis)
	assert.Nil(t, result.PerformanceMetrics)
	require.Len(t, result.Errors, 2)

	steps := map[string]bool{}
	for _, stepErr := range result.Errors {
		steps[stepErr.Step] = true
	}
	assert.True(t, steps["structure-analysis"])
	assert.True(t, steps["performance-metrics"])
}

func TestRunParallelAnalysisTimesEachStep(t *testing.T) {
	p := newParallelFixture(func(expression string, out interface{}) error {
		return nil
	})

	_ = p.RunParallelAnalysis(context.Background())
	timeline := p.Monitor().Timeline()
	require.Len(t, timeline, 2)
	names := map[string]bool{}
	for _, entry := range timeline {
		names[entry.OperationName] = true
		assert.False(t, entry.EndTime.IsZero(), "every step entry is completed")
	}
	assert.True(t, names["structure-analysis"])
	assert.True(t, names["performance-metrics"])
}
