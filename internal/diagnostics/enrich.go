// internal/diagnostics/enrich.go
package diagnostics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
)

// highConfidenceCutoff marks an alternative worth calling out on its own.
const highConfidenceCutoff = 0.8

// AlternativeFinder locates replacement candidates for a missing element.
// Satisfied by discovery.Finder.
type AlternativeFinder interface {
	FindAlternatives(ctx context.Context, criteria schemas.SearchCriteria, limit int) ([]schemas.AlternativeElement, error)
}

// StructureAnalyzer inspects the live page for diagnostic context.
// Satisfied by analysis.Analyzer.
type StructureAnalyzer interface {
	AnalyzeStructure(ctx context.Context) (*schemas.PageStructure, error)
}

// Enricher augments diagnostic errors with scenario-specific context
// gathered from the page. Every gathering failure degrades to the plain
// error rather than propagating; a broken page must never mask the original
// failure.
type Enricher struct {
	finder   AlternativeFinder
	analyzer StructureAnalyzer
	logger   *zap.Logger
}

// NewEnricher wires the enrichment pipeline. Either collaborator may be nil;
// the corresponding gathering step is skipped.
func NewEnricher(finder AlternativeFinder, analyzer StructureAnalyzer, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{finder: finder, analyzer: analyzer, logger: logger}
}

// EnrichElementNotFound runs element discovery and structure analysis
// concurrently, then folds the findings into the error as suggestions, a
// ranked alternative listing appended to the message, and structured
// context.
func (en *Enricher) EnrichElementNotFound(ctx context.Context, diagErr *DiagnosticError, criteria schemas.SearchCriteria) *DiagnosticError {
	var (
		wg           sync.WaitGroup
		alternatives []schemas.AlternativeElement
		structure    *schemas.PageStructure
	)

	if en.finder != nil && !criteria.Empty() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alts, err := en.finder.FindAlternatives(ctx, criteria, 0)
			if err != nil {
				en.logger.Warn("Alternative discovery failed during enrichment.", zap.Error(err))
				return
			}
			alternatives = alts
		}()
	}
	if en.analyzer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := en.analyzer.AnalyzeStructure(ctx)
			if err != nil {
				en.logger.Warn("Structure analysis failed during enrichment.", zap.Error(err))
				return
			}
			structure = s
		}()
	}
	wg.Wait()

	if len(alternatives) > 0 {
		diagErr.AddSuggestion(fmt.Sprintf("Found %d alternative element(s) matching the original criteria.", len(alternatives)))
		if alternatives[0].Confidence > highConfidenceCutoff {
			diagErr.AddSuggestion(fmt.Sprintf("High-confidence replacement available: %s (confidence %.2f).",
				alternatives[0].Selector, alternatives[0].Confidence))
		}
		diagErr.Message += formatAlternatives(alternatives)
		diagErr.SetContext("alternatives", alternatives)
	} else if !criteria.Empty() {
		diagErr.AddSuggestion("No alternative elements matched; verify the page finished loading and the selector is current.")
	}

	applyStructureHints(diagErr, structure)
	return diagErr
}

// EnrichTimeout classifies the overshoot and adds page-complexity context
// explaining why the operation may have run long.
func (en *Enricher) EnrichTimeout(ctx context.Context, diagErr *DiagnosticError, executionTime, threshold time.Duration) *DiagnosticError {
	diagErr.ExecutionTime = executionTime
	diagErr.PerformanceImpact = classifyDuration(executionTime, threshold)
	diagErr.AddSuggestion(fmt.Sprintf("Operation ran %v against a budget of %v.", executionTime, threshold))

	var structure *schemas.PageStructure
	if en.analyzer != nil {
		s, err := en.analyzer.AnalyzeStructure(ctx)
		if err != nil {
			en.logger.Warn("Structure analysis failed during timeout enrichment.", zap.Error(err))
		} else {
			structure = s
		}
	}
	if structure != nil && structure.Elements.TotalVisible > 1000 {
		diagErr.AddSuggestion(fmt.Sprintf("Page has %d visible elements; waits and queries scale with page size.",
			structure.Elements.TotalVisible))
	}
	applyStructureHints(diagErr, structure)
	return diagErr
}

// EnrichBatchFailure records which step of a batch broke and which steps
// completed before it, so a caller can resume rather than replay.
func (en *Enricher) EnrichBatchFailure(diagErr *DiagnosticError, failedStep string, executedSteps []string) *DiagnosticError {
	diagErr.SetContext("failedStep", failedStep)
	diagErr.SetContext("executedSteps", executedSteps)
	diagErr.AddSuggestion(fmt.Sprintf("Batch failed at step %q after %d completed step(s); resume from the failed step.",
		failedStep, len(executedSteps)))
	if len(executedSteps) > 0 {
		diagErr.AddSuggestion("Completed steps may have mutated page state; verify preconditions before retrying.")
	}
	return diagErr
}

func applyStructureHints(diagErr *DiagnosticError, structure *schemas.PageStructure) {
	if structure == nil {
		return
	}
	diagErr.SetContext("pageStructure", structure)
	if structure.Iframes.Detected {
		diagErr.AddSuggestion(fmt.Sprintf("Page contains %d iframe(s); the target may live inside a frame and need a frame-scoped lookup.",
			structure.Iframes.Count))
	}
	if structure.ModalStates.HasDialog || len(structure.ModalStates.BlockedBy) > 0 {
		diagErr.AddSuggestion("An open dialog or overlay may be intercepting interactions; dismiss it and retry.")
	}
	if structure.Elements.MissingAria > 0 {
		diagErr.AddSuggestion(fmt.Sprintf("%d interactable element(s) lack accessible labels; role-based lookups may be unreliable here.",
			structure.Elements.MissingAria))
	}
}

func formatAlternatives(alternatives []schemas.AlternativeElement) string {
	var sb strings.Builder
	sb.WriteString("\nRanked alternatives:")
	for i, alt := range alternatives {
		sb.WriteString(fmt.Sprintf("\n  %d. %s (confidence %.2f, %s)", i+1, alt.Selector, alt.Confidence, alt.Reason))
	}
	return sb.String()
}
