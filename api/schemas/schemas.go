package schemas

import "time"

// Component identifies which subsystem produced a diagnostic error.
type Component string

const (
	ComponentPageAnalyzer          Component = "PageAnalyzer"
	ComponentElementDiscovery      Component = "ElementDiscovery"
	ComponentResourceManager       Component = "ResourceManager"
	ComponentErrorHandler          Component = "ErrorHandler"
	ComponentConfigManager         Component = "ConfigManager"
	ComponentUnifiedSystem         Component = "UnifiedSystem"
	ComponentInitializationManager Component = "InitializationManager"
)

// PerformanceImpact classifies how badly an operation overshot its budget.
type PerformanceImpact string

const (
	ImpactLow    PerformanceImpact = "low"
	ImpactMedium PerformanceImpact = "medium"
	ImpactHigh   PerformanceImpact = "high"
)

// SearchCriteria describes what the caller was originally looking for when a
// selector failed to resolve. All fields are optional; empty criteria yield
// an empty discovery result rather than an error.
type SearchCriteria struct {
	Text       string            `json:"text,omitempty"`
	Role       string            `json:"role,omitempty"`
	TagName    string            `json:"tagName,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Empty reports whether no criterion is set.
func (c SearchCriteria) Empty() bool {
	return c.Text == "" && c.Role == "" && c.TagName == "" && len(c.Attributes) == 0
}

// AlternativeElement is a candidate replacement for an element that could not
// be found. Confidence is a heuristic in [0,1]; Reason explains which
// strategy produced the match.
type AlternativeElement struct {
	Selector   string  `json:"selector"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	ElementID  string  `json:"elementId,omitempty"`
}

// IframeInfo summarizes frames found on the page.
type IframeInfo struct {
	Detected     bool     `json:"detected"`
	Count        int      `json:"count"`
	Accessible   []string `json:"accessible"`
	Inaccessible []string `json:"inaccessible"`
}

// ModalInfo captures page states that commonly swallow interactions.
type ModalInfo struct {
	HasDialog      bool     `json:"hasDialog"`
	HasFileChooser bool     `json:"hasFileChooser"`
	BlockedBy      []string `json:"blockedBy"`
}

// ElementStats holds aggregate element counts used by diagnostic heuristics.
type ElementStats struct {
	TotalVisible      int `json:"totalVisible"`
	TotalInteractable int `json:"totalInteractable"`
	MissingAria       int `json:"missingAria"`
}

// PageStructure is the structural-analysis payload handed to tool handlers
// and report builders.
type PageStructure struct {
	Iframes     IframeInfo   `json:"iframes"`
	ModalStates ModalInfo    `json:"modalStates"`
	Elements    ElementStats `json:"elements"`
}

// PerformanceMetrics carries page timing data sampled from the browser.
type PerformanceMetrics struct {
	DOMContentLoadedMs float64 `json:"domContentLoadedMs"`
	LoadEventMs        float64 `json:"loadEventMs"`
	ResourceCount      int     `json:"resourceCount"`
	JSHeapUsedBytes    uint64  `json:"jsHeapUsedBytes"`
}

// ResourceUsage summarizes what an analysis run cost.
// CPUTime is a placeholder zero at this layer; the process does not meter
// per-operation CPU.
type ResourceUsage struct {
	MemoryUsage   uint64 `json:"memoryUsage"`
	CPUTime       int64  `json:"cpuTime"`
	PeakMemory    uint64 `json:"peakMemory"`
	AnalysisSteps int    `json:"analysisSteps"`
}

// StepError records a single failed analysis step without aborting siblings.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// AnalysisResult aggregates the settle-all outcome of a parallel page
// analysis. Whichever task succeeded is present; failures land in Errors.
type AnalysisResult struct {
	StructureAnalysis  *PageStructure      `json:"structureAnalysis,omitempty"`
	PerformanceMetrics *PerformanceMetrics `json:"performanceMetrics,omitempty"`
	Errors             []StepError         `json:"errors,omitempty"`
	ExecutionTime      time.Duration       `json:"executionTime"`
	ResourceUsage      ResourceUsage       `json:"resourceUsage"`
}

// PageIdentity identifies the page a diagnostic ran against.
type PageIdentity struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}
