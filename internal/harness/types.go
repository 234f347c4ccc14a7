package harness

import "github.com/roach88/paperfig/internal/engine"

// Collaborator call kinds recorded in the trace.
const (
	CallParse        = "parse"
	CallPlan         = "plan"
	CallGenerate     = "generate"
	CallCritique     = "critique"
	CallDocsDrift    = "docs_drift"
	CallArchCritique = "arch_critique"
	CallAudit        = "audit"
)

// Call is one collaborator invocation observed during a scenario run.
type Call struct {
	Seq       int    `json:"seq"`
	Kind      string `json:"call"`
	FigureID  string `json:"figure_id,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	// Detail is a short verdict: "passed"/"failed" for critiques, "drift"/"clean"
	// for docs checks, the block severity or audit mode for gates.
	Detail string `json:"detail,omitempty"`
}

// Outcomes a scenario can expect.
const (
	OutcomeSuccess           = "success"
	OutcomeGateFailure       = "gate_failure"
	OutcomeGenerationFailure = "generation_failure"
	OutcomeError             = "error"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the outcome and every assertion matched.
	Pass    bool   `json:"pass"`
	RunID   string `json:"run_id"`
	RunDir  string `json:"run_dir"`
	Outcome string `json:"outcome"`
	// Gate is set when Outcome is gate_failure.
	Gate    string                 `json:"gate,omitempty"`
	Trace   []Call                 `json:"trace"`
	Summary *engine.InspectSummary `json:"summary,omitempty"`
	Errors  []string               `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []Call{}, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Figure returns the inspect summary of figureID, if present.
func (r *Result) Figure(figureID string) (engine.FigureSummary, bool) {
	if r.Summary == nil {
		return engine.FigureSummary{}, false
	}
	for _, f := range r.Summary.Figures {
		if f.FigureID == figureID {
			return f, true
		}
	}
	return engine.FigureSummary{}, false
}
