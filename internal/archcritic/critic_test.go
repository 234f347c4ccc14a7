package archcritic_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/archcritic"
	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/templates"
	"github.com/roach88/paperfig/internal/testutil"
)

func TestCritique_EmptyRunDirectory(t *testing.T) {
	c := archcritic.New(t.TempDir(), nil)
	runDir := filepath.Join(t.TempDir(), "run-empty")
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	report, err := c.Critique(context.Background(), runDir, ir.SeverityCritical, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-empty", report.RunID)
	assert.True(t, report.Blocked, "missing plan is critical")

	var ids []string
	for _, f := range report.Findings {
		ids = append(ids, f.FindingID)
	}
	assert.Equal(t, []string{"missing_docs_drift_report", "missing_flow_docs", "missing_inspect", "missing_plan"}, ids)
	assert.Equal(t, "4 finding(s); highest severity=critical", report.Summary)
}

func TestCritique_EnabledRulesSubset(t *testing.T) {
	c := archcritic.New(t.TempDir(), nil)
	runDir := t.TempDir()

	report, err := c.Critique(context.Background(), runDir, ir.SeverityMajor, []string{"missing_docs_drift_report"})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.False(t, report.Blocked, "minor does not reach major")
}

func TestCritique_UnknownRule(t *testing.T) {
	c := archcritic.New(t.TempDir(), nil)
	_, err := c.Critique(context.Background(), t.TempDir(), ir.SeverityMajor, []string{"nope"})
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
	assert.Contains(t, err.Error(), `"nope"`)
	assert.Contains(t, err.Error(), "available: empty_plan, failed_figures")
}

func TestCritique_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := archcritic.New(t.TempDir(), nil).Critique(ctx, t.TempDir(), ir.SeverityMajor, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "No architecture findings.", archcritic.Summarize(nil))
	assert.Equal(t, "2 finding(s); highest severity=major", archcritic.Summarize([]ir.Finding{
		{Severity: ir.SeverityMinor}, {Severity: ir.SeverityMajor},
	}))
}

func TestListRules(t *testing.T) {
	rules := archcritic.New("", nil).ListRules()
	require.Len(t, rules, len(archcritic.Rules))
	assert.Equal(t, engine.RuleInfo{
		ID:          "missing_flow_docs",
		Description: "Verify every architecture flow folder contains README.md and diagram.mermaid.",
		Severity:    ir.SeverityMajor,
	}, rules[4])
}

// A full generate with the real critic: the plan references a template
// that is not in the builtin pack and the repo has no flow docs.
func TestCritique_InlineDuringGenerate(t *testing.T) {
	root := t.TempDir()
	plan := testutil.PlanEntry("a", "Figure A", 1)
	plan.TemplateID = "retired_template"
	fakes := testutil.NewFakes(plan)
	deps := fakes.Deps()
	deps.ArchCritic = archcritic.New(t.TempDir(), templates.NewSource(""))

	cfg := engine.DefaultConfig(root)
	cfg.ArchCritiqueBlockSeverity = ir.SeverityMajor
	o, err := engine.New(cfg, deps,
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithClock(testutil.NewFixedClock(testutil.Epoch)),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("run-1")))
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "paper.md")
	require.Error(t, err)
	assert.True(t, engine.IsGateFailure(err))

	report, err := o.CritiqueArchitecture(context.Background(), "run-1", ir.SeverityCritical, []string{"invalid_template_reference"})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "retired_template", report.Findings[0].Evidence)
	assert.False(t, report.Blocked)
	assert.Equal(t, "2025-01-02T03:04:05Z", report.GeneratedAt)
}
