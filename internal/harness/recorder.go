package harness

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// recorder wraps engine collaborators and appends every call to a trace.
type recorder struct {
	mu        sync.Mutex
	calls     []Call
	iteration map[string]int
}

func newRecorder() *recorder {
	return &recorder{calls: []Call{}, iteration: map[string]int{}}
}

func (r *recorder) add(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Seq = len(r.calls) + 1
	r.calls = append(r.calls, c)
}

func (r *recorder) trace() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call{}, r.calls...)
}

// wrap returns deps whose collaborators report to r. Nil collaborators
// stay nil so the orchestrator still skips their gates.
func (r *recorder) wrap(d engine.Deps) engine.Deps {
	out := d
	out.Parser = parser{r, d.Parser}
	out.Planner = planner{r, d.Planner}
	out.Generator = generator{r, d.Generator}
	out.Critic = critic{r, d.Critic}
	if d.Drift != nil {
		out.Drift = drift{r, d.Drift}
	}
	if d.ArchCritic != nil {
		out.ArchCritic = archCritic{r, d.ArchCritic}
	}
	if d.Auditor != nil {
		out.Auditor = auditor{r, d.Auditor}
	}
	return out
}

type parser struct {
	r *recorder
	engine.DocumentParser
}

func (p parser) Parse(ctx context.Context, path string) (*ir.Document, error) {
	p.r.add(Call{Kind: CallParse})
	return p.DocumentParser.Parse(ctx, path)
}

type planner struct {
	r *recorder
	engine.Planner
}

func (p planner) Plan(ctx context.Context, doc *ir.Document, pack string) ([]ir.FigurePlan, error) {
	plan, err := p.Planner.Plan(ctx, doc, pack)
	p.r.add(Call{Kind: CallPlan, Detail: fmt.Sprintf("%d figure(s)", len(plan))})
	return plan, err
}

type generator struct {
	r *recorder
	engine.Generator
}

func (g generator) Generate(ctx context.Context, req engine.GenerateRequest) (ir.Candidate, error) {
	g.r.mu.Lock()
	g.r.iteration[req.Plan.FigureID] = req.Iteration
	g.r.mu.Unlock()

	c, err := g.Generator.Generate(ctx, req)
	call := Call{Kind: CallGenerate, FigureID: req.Plan.FigureID, Iteration: req.Iteration}
	if err != nil {
		call.Detail = "error"
	}
	g.r.add(call)
	return c, err
}

type critic struct {
	r *recorder
	engine.Critic
}

func (c critic) Critique(ctx context.Context, req engine.CritiqueRequest) (ir.CritiqueReport, error) {
	c.r.mu.Lock()
	iteration := c.r.iteration[req.Plan.FigureID]
	c.r.mu.Unlock()

	report, err := c.Critic.Critique(ctx, req)
	call := Call{Kind: CallCritique, FigureID: req.Plan.FigureID, Iteration: iteration}
	switch {
	case err != nil:
		call.Detail = "error"
	case report.Passed:
		call.Detail = "passed"
	default:
		call.Detail = "failed"
	}
	c.r.add(call)
	return report, err
}

type drift struct {
	r *recorder
	engine.DriftChecker
}

func (d drift) Check(ctx context.Context, manifestPath string, checkOnly bool) (ir.DocsDriftReport, error) {
	report, err := d.DriftChecker.Check(ctx, manifestPath, checkOnly)
	detail := "clean"
	if err != nil {
		detail = "error"
	} else if report.DriftDetected {
		detail = "drift"
	}
	d.r.add(Call{Kind: CallDocsDrift, Detail: detail})
	return report, err
}

type archCritic struct {
	r *recorder
	engine.ArchitectureCritic
}

func (a archCritic) Critique(ctx context.Context, runDir string, block ir.Severity, rules []string) (ir.ArchitectureReport, error) {
	a.r.add(Call{Kind: CallArchCritique, Detail: string(block)})
	return a.ArchitectureCritic.Critique(ctx, runDir, block, rules)
}

type auditor struct {
	r *recorder
	engine.Auditor
}

func (a auditor) Audit(ctx context.Context, req engine.AuditRequest) (ir.ReproReport, error) {
	a.r.add(Call{Kind: CallAudit, Detail: string(req.Mode)})
	return a.Auditor.Audit(ctx, req)
}
