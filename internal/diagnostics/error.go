// internal/diagnostics/error.go
package diagnostics

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/triage-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Severity ratio cutoffs. Execution time is judged against the performance
// threshold, memory against the memory threshold.
const (
	perfHighRatio   = 3.0
	perfMediumRatio = 2.0
	memHighRatio    = 2.0
	memMediumRatio  = 1.5
)

// DiagnosticError is the structured error produced by the diagnostic
// pipeline. Suggestions are append-only; everything else is set at
// construction.
type DiagnosticError struct {
	Timestamp         time.Time
	Component         schemas.Component
	Operation         string
	Message           string
	OriginalError     error
	ExecutionTime     time.Duration
	MemoryUsage       uint64
	PerformanceImpact schemas.PerformanceImpact
	Suggestions       []string
	Context           map[string]interface{}
}

// Error renders the canonical "[component:operation] message" form.
func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As chains.
func (e *DiagnosticError) Unwrap() error {
	return e.OriginalError
}

// AddSuggestion appends a remediation hint, skipping exact duplicates.
func (e *DiagnosticError) AddSuggestion(suggestion string) {
	for _, existing := range e.Suggestions {
		if existing == suggestion {
			return
		}
	}
	e.Suggestions = append(e.Suggestions, suggestion)
}

// SetContext attaches a free-form context value.
func (e *DiagnosticError) SetContext(key string, value interface{}) {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
}

type jsonDiagnosticError struct {
	Timestamp         time.Time                 `json:"timestamp"`
	Component         schemas.Component         `json:"component"`
	Operation         string                    `json:"operation"`
	Message           string                    `json:"message"`
	OriginalError     string                    `json:"originalError,omitempty"`
	ExecutionTimeMs   int64                     `json:"executionTimeMs,omitempty"`
	MemoryUsage       uint64                    `json:"memoryUsage,omitempty"`
	PerformanceImpact schemas.PerformanceImpact `json:"performanceImpact"`
	Suggestions       []string                  `json:"suggestions"`
	Context           map[string]interface{}    `json:"context,omitempty"`
}

// ToJSON renders the structured form. The wrapped cause is summarized as its
// message string because arbitrary error values do not marshal usefully.
func (e *DiagnosticError) ToJSON() ([]byte, error) {
	out := jsonDiagnosticError{
		Timestamp:         e.Timestamp,
		Component:         e.Component,
		Operation:         e.Operation,
		Message:           e.Message,
		ExecutionTimeMs:   e.ExecutionTime.Milliseconds(),
		MemoryUsage:       e.MemoryUsage,
		PerformanceImpact: e.PerformanceImpact,
		Suggestions:       e.Suggestions,
		Context:           e.Context,
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	if e.OriginalError != nil {
		out.OriginalError = e.OriginalError.Error()
	}
	return json.Marshal(out)
}

// String is the human-readable long form, including the summarized cause.
func (e *DiagnosticError) String() string {
	s := e.Error()
	if e.OriginalError != nil {
		s += fmt.Sprintf(" (caused by: %v)", e.OriginalError)
	}
	if len(e.Suggestions) > 0 {
		s += fmt.Sprintf(" [%d suggestions]", len(e.Suggestions))
	}
	return s
}

// From wraps a plain error into a DiagnosticError with low impact.
func From(err error, component schemas.Component, operation string, context map[string]interface{}) *DiagnosticError {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	return &DiagnosticError{
		Timestamp:         time.Now(),
		Component:         component,
		Operation:         operation,
		Message:           message,
		OriginalError:     err,
		PerformanceImpact: schemas.ImpactLow,
		Context:           context,
	}
}

// Performance builds an error for an operation that overshot its time
// budget. Impact is classified by how far past the threshold it ran.
func Performance(message string, component schemas.Component, operation string, executionTime, threshold time.Duration) *DiagnosticError {
	e := &DiagnosticError{
		Timestamp:         time.Now(),
		Component:         component,
		Operation:         operation,
		Message:           message,
		ExecutionTime:     executionTime,
		PerformanceImpact: classifyDuration(executionTime, threshold),
	}
	e.AddSuggestion(fmt.Sprintf("Operation took %v against a budget of %v; consider raising the timeout or simplifying the target page.", executionTime, threshold))
	e.AddSuggestion("Break the operation into smaller steps so a single slow stage does not exceed the budget.")
	return e
}

// Resource is the memory analog of Performance.
func Resource(message string, component schemas.Component, operation string, memoryUsage, threshold uint64) *DiagnosticError {
	e := &DiagnosticError{
		Timestamp:         time.Now(),
		Component:         component,
		Operation:         operation,
		Message:           message,
		MemoryUsage:       memoryUsage,
		PerformanceImpact: classifyMemory(memoryUsage, threshold),
	}
	e.AddSuggestion(fmt.Sprintf("Operation used %d bytes against a budget of %d; dispose element handles promptly.", memoryUsage, threshold))
	e.AddSuggestion("Lower discovery limits to reduce the number of live handles held at once.")
	return e
}

func classifyDuration(executionTime, threshold time.Duration) schemas.PerformanceImpact {
	if threshold <= 0 {
		return schemas.ImpactLow
	}
	ratio := float64(executionTime) / float64(threshold)
	switch {
	case ratio > perfHighRatio:
		return schemas.ImpactHigh
	case ratio > perfMediumRatio:
		return schemas.ImpactMedium
	default:
		return schemas.ImpactLow
	}
}

func classifyMemory(used, threshold uint64) schemas.PerformanceImpact {
	if threshold == 0 {
		return schemas.ImpactLow
	}
	ratio := float64(used) / float64(threshold)
	switch {
	case ratio > memHighRatio:
		return schemas.ImpactHigh
	case ratio > memMediumRatio:
		return schemas.ImpactMedium
	default:
		return schemas.ImpactLow
	}
}
