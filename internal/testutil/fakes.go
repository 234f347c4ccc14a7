package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// ErrScriptedFailure is returned by fakes configured to fail.
var ErrScriptedFailure = errors.New("scripted failure")

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SampleDocument returns a small three-section document.
func SampleDocument() *ir.Document {
	method := "We encode each paper section and align it with a figure plan."
	system := "The system has a planner, a generator and a critic connected in a loop."
	results := "Accepted figures improved faithfulness by 12 percent over the baseline."
	full := method + "\n" + system + "\n" + results
	return &ir.Document{
		FullText: full,
		Sections: map[string]ir.Section{
			"methodology": {Name: "methodology", Text: method, Start: 0, End: len(method)},
			"system":      {Name: "system", Text: system, Start: len(method) + 1, End: len(method) + 1 + len(system)},
			"results":     {Name: "results", Text: results, Start: len(method) + len(system) + 2, End: len(full)},
		},
	}
}

// PlanEntry returns a plan entry citing the methodology section.
func PlanEntry(figureID, title string, order int) ir.FigurePlan {
	return ir.FigurePlan{
		FigureID:         figureID,
		Title:            title,
		Kind:             "methodology",
		Order:            order,
		AbstractionLevel: "medium",
		Description:      "Overview of " + title,
		Justification:    "Explains " + title,
		TemplateID:       "methodology_pipeline",
		SourceSpans: []ir.SourceSpan{
			{Section: "methodology", Start: 0, End: 20, Quote: "We encode each paper"},
		},
	}
}

// StaticParser returns a fixed document for every path.
type StaticParser struct {
	Document *ir.Document
	Err      error
}

// Parse returns a copy of the configured document stamped with path.
func (p *StaticParser) Parse(_ context.Context, path string) (*ir.Document, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	src := p.Document
	if src == nil {
		src = SampleDocument()
	}
	doc := *src
	doc.SourcePath = path
	return &doc, nil
}

// StaticPlanner returns a fixed plan and counts calls.
type StaticPlanner struct {
	mu      sync.Mutex
	Entries []ir.FigurePlan
	Err     error
	calls   int
}

// Plan returns a copy of the configured plan.
func (p *StaticPlanner) Plan(context.Context, *ir.Document, string) ([]ir.FigurePlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return nil, p.Err
	}
	return append([]ir.FigurePlan(nil), p.Entries...), nil
}

// Calls returns how many times Plan was invoked.
func (p *StaticPlanner) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// RecordingGenerator writes a deterministic artifact set into each
// iteration directory and records every request.
//
// The SVG depends only on figure id, title and iteration, so two runs over
// the same plan render byte-identical figures.
type RecordingGenerator struct {
	mu       sync.Mutex
	requests []engine.GenerateRequest
	// FailAt makes the generator fail for a figure on the given iteration.
	FailAt map[string]int
}

// Generate writes figure.svg, element_metadata.json and traceability.json.
func (g *RecordingGenerator) Generate(_ context.Context, req engine.GenerateRequest) (ir.Candidate, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	failAt := g.FailAt[req.Plan.FigureID]
	g.mu.Unlock()

	if failAt == req.Iteration {
		return ir.Candidate{}, fmt.Errorf("render %s: %w", req.Plan.FigureID, ErrScriptedFailure)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return ir.Candidate{}, err
	}

	c := ir.Candidate{
		FigureID:            req.Plan.FigureID,
		ArtifactPath:        filepath.Join(req.OutputDir, engine.ArtifactSVG),
		ElementMetadataPath: filepath.Join(req.OutputDir, engine.ArtifactElements),
		TraceabilityPath:    filepath.Join(req.OutputDir, engine.ArtifactTrace),
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="200" data-figure=%q data-iteration="%d"><title>%s</title></svg>`,
		req.Plan.FigureID, req.Iteration, req.Plan.Title)
	if err := os.WriteFile(c.ArtifactPath, []byte(svg), 0o644); err != nil {
		return ir.Candidate{}, err
	}

	elements := []ir.Element{{
		ID:          req.Plan.FigureID + "-node",
		Type:        "node",
		Label:       req.Plan.Title,
		SourceSpans: req.Plan.SourceSpans,
	}}
	if err := writeFixtureJSON(c.ElementMetadataPath, elements); err != nil {
		return ir.Candidate{}, err
	}
	if err := writeFixtureJSON(c.TraceabilityPath, ir.BuildTraceability(req.Plan.FigureID, elements)); err != nil {
		return ir.Candidate{}, err
	}
	return c, nil
}

// Requests returns the recorded requests in call order.
func (g *RecordingGenerator) Requests() []engine.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]engine.GenerateRequest(nil), g.requests...)
}

// RequestsFor returns the recorded requests of one figure.
func (g *RecordingGenerator) RequestsFor(figureID string) []engine.GenerateRequest {
	var out []engine.GenerateRequest
	for _, r := range g.Requests() {
		if r.Plan.FigureID == figureID {
			out = append(out, r)
		}
	}
	return out
}

// Pass returns a passing critique verdict with the given score.
func Pass(score float64) ir.CritiqueReport {
	return ir.CritiqueReport{
		Score:  score,
		Passed: true,
		QualityDimensions: map[string]float64{
			"faithfulness": score, "readability": score, "conciseness": score, "aesthetics": score,
		},
	}
}

// Fail returns a failing critique verdict naming the failed dimensions.
func Fail(score float64, dims ...string) ir.CritiqueReport {
	r := ir.CritiqueReport{
		Score:             score,
		QualityDimensions: map[string]float64{},
		FailedDimensions:  dims,
	}
	for _, d := range dims {
		r.QualityDimensions[d] = score / 2
		r.Issues = append(r.Issues, d+" below threshold")
		r.Recommendations = append(r.Recommendations, "improve "+d)
	}
	return r
}

// ScriptedCritic replays per-figure verdicts in call order. Once a script
// is exhausted its last verdict repeats; figures without a script pass.
type ScriptedCritic struct {
	mu      sync.Mutex
	Scripts map[string][]ir.CritiqueReport
	// FailAt makes the critic return an error for a figure on its n-th call.
	FailAt map[string]int
	calls  map[string]int
}

// Critique returns the next scripted verdict for the request's figure.
func (c *ScriptedCritic) Critique(_ context.Context, req engine.CritiqueRequest) (ir.CritiqueReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	id := req.Plan.FigureID
	c.calls[id]++
	n := c.calls[id]
	if c.FailAt[id] == n {
		return ir.CritiqueReport{}, fmt.Errorf("score %s: %w", id, ErrScriptedFailure)
	}

	report := Pass(0.9)
	if script := c.Scripts[id]; len(script) > 0 {
		idx := n - 1
		if idx >= len(script) {
			idx = len(script) - 1
		}
		report = script[idx]
	}
	report.FigureID = id
	report.Threshold = req.Threshold
	report.DimensionThreshold = req.DimensionThreshold
	return report, nil
}

// Calls returns how many times figureID was critiqued.
func (c *ScriptedCritic) Calls(figureID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[figureID]
}

// StaticDrift returns a fixed drift verdict.
type StaticDrift struct {
	mu            sync.Mutex
	DriftDetected bool
	Err           error
	checkOnly     []bool
}

// Check returns a single-document report.
func (d *StaticDrift) Check(_ context.Context, manifestPath string, checkOnly bool) (ir.DocsDriftReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkOnly = append(d.checkOnly, checkOnly)
	if d.Err != nil {
		return ir.DocsDriftReport{}, d.Err
	}
	return ir.DocsDriftReport{
		CheckedAt:     Epoch.Format("2006-01-02T15:04:05Z"),
		ManifestPath:  manifestPath,
		CheckOnly:     checkOnly,
		DriftDetected: d.DriftDetected,
		Documents: []ir.DocReport{{
			Path:                    "docs/ARCHITECTURE.md",
			Mode:                    "hybrid",
			Exists:                  true,
			Drift:                   d.DriftDetected,
			MissingRequiredSections: []string{},
			RenderedBlocks:          []string{},
			MissingBlockConfigs:     []string{},
		}},
	}, nil
}

// CheckOnlyCalls returns the check_only flag of every call.
func (d *StaticDrift) CheckOnlyCalls() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.checkOnly...)
}

// DefaultRules is the rule registry StaticArchCritic reports by default.
var DefaultRules = []engine.RuleInfo{
	{ID: "empty_plan", Description: "Plan has no figures", Severity: ir.SeverityCritical},
	{ID: "failed_figures", Description: "Some figures were not accepted", Severity: ir.SeverityMajor},
}

// StaticArchCritic returns fixed findings.
type StaticArchCritic struct {
	Findings []ir.Finding
	Rules    []engine.RuleInfo
	Err      error
}

// Critique returns the configured findings. Blocked is left for the caller.
func (a *StaticArchCritic) Critique(_ context.Context, _ string, block ir.Severity, _ []string) (ir.ArchitectureReport, error) {
	if a.Err != nil {
		return ir.ArchitectureReport{}, a.Err
	}
	return ir.ArchitectureReport{
		BlockSeverity: block,
		Findings:      append([]ir.Finding(nil), a.Findings...),
		Summary:       fmt.Sprintf("%d finding(s)", len(a.Findings)),
	}, nil
}

// ListRules returns Rules, or DefaultRules when unset.
func (a *StaticArchCritic) ListRules() []engine.RuleInfo {
	if a.Rules != nil {
		return a.Rules
	}
	return DefaultRules
}

// StaticAuditor returns fixed checks and records requests.
type StaticAuditor struct {
	mu       sync.Mutex
	Checks   []ir.ReproCheck
	Err      error
	requests []engine.AuditRequest
}

// Audit returns the configured checks. Passed is left for the caller.
func (a *StaticAuditor) Audit(_ context.Context, req engine.AuditRequest) (ir.ReproReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.Err != nil {
		return ir.ReproReport{}, a.Err
	}
	checks := a.Checks
	if checks == nil {
		checks = []ir.ReproCheck{{CheckID: "run_json_present", Required: true, Passed: true, Severity: ir.SeverityCritical}}
	}
	return ir.ReproReport{
		Mode:        req.Mode,
		Checks:      append([]ir.ReproCheck(nil), checks...),
		Environment: map[string]string{"go": "test"},
	}, nil
}

// Requests returns the recorded audit requests.
func (a *StaticAuditor) Requests() []engine.AuditRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]engine.AuditRequest(nil), a.requests...)
}

// MemoryIndex records run index events in memory.
type MemoryIndex struct {
	mu       sync.Mutex
	started  []engine.RunRecord
	finished []engine.RunOutcome
}

// RecordRunStarted implements engine.RunIndex.
func (m *MemoryIndex) RecordRunStarted(_ context.Context, rec engine.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, rec)
	return nil
}

// RecordRunFinished implements engine.RunIndex.
func (m *MemoryIndex) RecordRunFinished(_ context.Context, out engine.RunOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, out)
	return nil
}

// Started returns the recorded start events.
func (m *MemoryIndex) Started() []engine.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.RunRecord(nil), m.started...)
}

// Finished returns the recorded finish events.
func (m *MemoryIndex) Finished() []engine.RunOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.RunOutcome(nil), m.finished...)
}

// Fakes bundles one of each fake collaborator.
type Fakes struct {
	Parser     *StaticParser
	Planner    *StaticPlanner
	Generator  *RecordingGenerator
	Critic     *ScriptedCritic
	Drift      *StaticDrift
	ArchCritic *StaticArchCritic
	Auditor    *StaticAuditor
	Index      *MemoryIndex
}

// NewFakes returns fakes that plan the given entries, render every
// iteration, pass every critique and report no drift or findings.
func NewFakes(plan ...ir.FigurePlan) *Fakes {
	return &Fakes{
		Parser:     &StaticParser{},
		Planner:    &StaticPlanner{Entries: plan},
		Generator:  &RecordingGenerator{},
		Critic:     &ScriptedCritic{},
		Drift:      &StaticDrift{},
		ArchCritic: &StaticArchCritic{},
		Auditor:    &StaticAuditor{},
		Index:      &MemoryIndex{},
	}
}

// Deps wires the fakes into engine.Deps. Exporter is left nil.
func (f *Fakes) Deps() engine.Deps {
	return engine.Deps{
		Parser:     f.Parser,
		Planner:    f.Planner,
		Generator:  f.Generator,
		Critic:     f.Critic,
		ArchCritic: f.ArchCritic,
		Auditor:    f.Auditor,
		Drift:      f.Drift,
		Index:      f.Index,
	}
}

func writeFixtureJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
