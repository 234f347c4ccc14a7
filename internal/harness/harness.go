package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/testutil"
)

// SourcePath is the document path every scenario run generates from.
const SourcePath = "paper.md"

// Run executes a scenario under root and returns the result. An error is
// returned only when the scenario cannot be set up; run failures are part
// of the result.
func Run(ctx context.Context, s *Scenario, root string) (*Result, error) {
	fakes := newFakes(s)
	cfg, err := scenarioConfig(s, root)
	if err != nil {
		return nil, err
	}

	rec := newRecorder()
	o, err := engine.New(cfg, rec.wrap(fakes.Deps()),
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithClock(testutil.NewFixedClock(time.Time{})),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(s.RunID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result := NewResult()
	result.RunID = s.RunID
	result.RunDir = engine.RunDir(root, s.RunID)

	_, runErr := o.Generate(ctx, SourcePath)
	result.Outcome = outcomeOf(runErr)
	result.Gate = engine.FailedGate(runErr)
	result.Trace = rec.trace()

	if _, statErr := os.Stat(result.RunDir); statErr == nil {
		summary, err := o.Inspect(ctx, s.RunID, engine.InspectFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to inspect run: %w", err)
		}
		result.Summary = summary
	}

	if result.Outcome != s.Expect.Outcome {
		result.AddError(fmt.Sprintf("outcome: expected %s, got %s (%v)", s.Expect.Outcome, result.Outcome, runErr))
	}
	if s.Expect.Gate != "" && result.Gate != s.Expect.Gate {
		result.AddError(fmt.Sprintf("gate: expected %s, got %q", s.Expect.Gate, result.Gate))
	}
	for i, a := range s.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case engine.IsGateFailure(err):
		return OutcomeGateFailure
	case engine.IsGenerationFailure(err):
		return OutcomeGenerationFailure
	default:
		return OutcomeError
	}
}

func newFakes(s *Scenario) *testutil.Fakes {
	plan := make([]ir.FigurePlan, 0, len(s.Plan))
	for i, p := range s.Plan {
		entry := testutil.PlanEntry(p.FigureID, p.Title, i+1)
		if p.Kind != "" {
			entry.Kind = p.Kind
		}
		plan = append(plan, entry)
	}

	fakes := testutil.NewFakes(plan...)
	if len(s.Critic) > 0 {
		fakes.Critic.Scripts = map[string][]ir.CritiqueReport{}
		for id, verdicts := range s.Critic {
			for _, v := range verdicts {
				report := testutil.Fail(v.Score, v.Failed...)
				if v.Passed {
					report = testutil.Pass(v.Score)
				}
				fakes.Critic.Scripts[id] = append(fakes.Critic.Scripts[id], report)
			}
		}
	}
	fakes.Critic.FailAt = s.CriticFailAt
	fakes.Generator.FailAt = s.GeneratorFailAt
	fakes.Drift.DriftDetected = s.DocsDrift

	for _, f := range s.ArchFindings {
		fakes.ArchCritic.Findings = append(fakes.ArchCritic.Findings, ir.Finding{
			FindingID: f.FindingID,
			Severity:  f.Severity,
		})
	}
	for _, c := range s.AuditChecks {
		fakes.Auditor.Checks = append(fakes.Auditor.Checks, ir.ReproCheck{
			CheckID:  c.CheckID,
			Required: c.Required,
			Passed:   c.Passed,
			Severity: c.Severity,
		})
	}
	return fakes
}

func scenarioConfig(s *Scenario, root string) (engine.Config, error) {
	cfg := engine.DefaultConfig(root)
	c := s.Config
	if c.MaxIterations != 0 {
		cfg.MaxIterations = c.MaxIterations
	}
	if c.QualityThreshold != 0 {
		cfg.QualityThreshold = c.QualityThreshold
	}
	if c.ArchCritique != "" {
		cfg.ArchCritiqueMode = c.ArchCritique
	}
	if c.BlockSeverity != "" {
		sev, err := ir.ParseSeverity(c.BlockSeverity)
		if err != nil {
			return engine.Config{}, fmt.Errorf("config.block_severity: %w", err)
		}
		cfg.ArchCritiqueBlockSeverity = sev
	}
	if c.AuditMode != "" {
		mode, err := ir.ParseAuditMode(c.AuditMode)
		if err != nil {
			return engine.Config{}, fmt.Errorf("config.audit_mode: %w", err)
		}
		cfg.ReproAuditMode = mode
	}
	cfg.Contrib = c.Contrib
	return cfg, nil
}

// RunFile loads and runs a scenario file in a fresh directory under root.
func RunFile(ctx context.Context, path, root string) (*Scenario, *Result, error) {
	s, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	dir := filepath.Join(root, s.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	res, err := Run(ctx, s, dir)
	return s, res, err
}
