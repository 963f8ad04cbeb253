package core

import "time"

// =============================================================================
// VALIDATION REPORT
// One report per validation pass. Pre-export and post-export reports are
// never merged; both are surfaced to the caller.
// =============================================================================

// Severity ranks a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Scope names what a finding is about.
type Scope string

const (
	ScopeNode  Scope = "node"
	ScopeEdge  Scope = "edge"
	ScopeGraph Scope = "graph"
)

// Finding is one validation observation.
type Finding struct {
	Severity Severity
	Scope    Scope
	// TargetRef identifies the offending node id, edge key, or graph.
	TargetRef string
	Message   string
	RuleID    string
}

// Report is the ordered sequence of findings from one validation pass.
type Report struct {
	// Pass names the validation pass ("pre-export", "post-export").
	Pass      string
	RunID     string
	Findings  []Finding
	StartedAt time.Time
}

// NewReport creates an empty report for the named pass.
func NewReport(pass, runID string) *Report {
	return &Report{Pass: pass, RunID: runID, StartedAt: time.Now().UTC()}
}

// Add appends a finding.
func (r *Report) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Count returns the number of findings with the given severity.
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error-severity finding was recorded.
func (r *Report) HasErrors() bool { return r.Count(SeverityError) > 0 }
