package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/exporter"
	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/testutil"
)

func TestExport_WritesFormatsAndReport(t *testing.T) {
	root := t.TempDir()
	fakes := testutil.NewFakes(twoFigurePlan()...)
	deps := fakes.Deps()
	deps.Exporter = exporter.New()
	o, err := engine.New(engine.DefaultConfig(root), deps,
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("run-1")))
	require.NoError(t, err)

	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	outDir, err := o.Export(context.Background(), runID, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, runID, engine.DirExports), outDir)

	for _, name := range []string{
		"a.svg", "a.tex", "a.traceability.json",
		"b.svg", "b.tex", "b.traceability.json",
		engine.FileCaptions, engine.FileTraceability, engine.FileExportReport,
	} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	tex, err := os.ReadFile(filepath.Join(outDir, "a.tex"))
	require.NoError(t, err)
	assert.Equal(t, exporter.Snippet("a", "a.svg", "Figure A"), string(tex))

	var report engine.ExportReport
	readJSONFile(t, filepath.Join(outDir, engine.FileExportReport), &report)
	assert.Equal(t, runID, report.RunID)
	require.Len(t, report.Figures, 2)
	assert.Nil(t, report.Figures[0].PNG)
	assert.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "PNG export skipped for a")
}

func TestExport_CustomOutputDir(t *testing.T) {
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "Figure A", 1))
	deps := fakes.Deps()
	deps.Exporter = exporter.New()
	o, err := engine.New(engine.DefaultConfig(t.TempDir()), deps,
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("run-1")))
	require.NoError(t, err)

	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	custom := filepath.Join(t.TempDir(), "paper-figures")
	outDir, err := o.Export(context.Background(), runID, custom)
	require.NoError(t, err)
	assert.Equal(t, custom, outDir)
	assert.FileExists(t, filepath.Join(custom, "a.svg"))
}

func TestExport_WithoutExporterIsConfigurationError(t *testing.T) {
	root := t.TempDir()
	o := newOrchestrator(t, root, testutil.NewFakes(testutil.PlanEntry("a", "A", 1)), nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	_, err = o.Export(context.Background(), runID, "")
	assert.True(t, engine.IsConfigurationError(err))
}

func TestExport_MissingRunIsNotFound(t *testing.T) {
	o := newOrchestrator(t, t.TempDir(), testutil.NewFakes(), nil)
	_, err := o.Export(context.Background(), "run-missing", "")
	assert.True(t, engine.IsNotFound(err))
}

func TestAudit_OverwritesOnlyItsReport(t *testing.T) {
	root := t.TempDir()
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, root, fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	runDir := filepath.Join(root, runID)
	inspectBefore, err := os.ReadFile(filepath.Join(runDir, engine.FileInspect))
	require.NoError(t, err)
	archBefore, err := os.ReadFile(filepath.Join(runDir, engine.FileArchCritique))
	require.NoError(t, err)

	fakes.Auditor.Checks = failingAudit()
	report, err := o.Audit(context.Background(), runID, ir.AuditHard)
	require.NoError(t, err, "re-invoked audits report, they do not gate")
	assert.False(t, report.Passed)
	assert.Equal(t, ir.AuditHard, report.Mode)

	var persisted ir.ReproReport
	readJSONFile(t, filepath.Join(runDir, engine.FileReproAudit), &persisted)
	assert.False(t, persisted.Passed)
	assert.Equal(t, ir.AuditHard, persisted.Mode)

	inspectAfter, err := os.ReadFile(filepath.Join(runDir, engine.FileInspect))
	require.NoError(t, err)
	archAfter, err := os.ReadFile(filepath.Join(runDir, engine.FileArchCritique))
	require.NoError(t, err)
	assert.Equal(t, string(inspectBefore), string(inspectAfter))
	assert.Equal(t, string(archBefore), string(archAfter))
}

func TestAudit_EmptyModeUsesConfig(t *testing.T) {
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, t.TempDir(), fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	report, err := o.Audit(context.Background(), runID, "")
	require.NoError(t, err)
	assert.Equal(t, ir.AuditSoft, report.Mode)
}

func TestAudit_InvalidModeIsConfigurationError(t *testing.T) {
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, t.TempDir(), fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	_, err = o.Audit(context.Background(), runID, "strict")
	assert.True(t, engine.IsConfigurationError(err))
}

func TestAudit_MissingRunIsNotFound(t *testing.T) {
	o := newOrchestrator(t, t.TempDir(), testutil.NewFakes(), nil)
	_, err := o.Audit(context.Background(), "run-missing", ir.AuditSoft)
	assert.True(t, engine.IsNotFound(err))
}

func TestCritiqueArchitecture_BlockedAtRequestedSeverity(t *testing.T) {
	root := t.TempDir()
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, root, fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	fakes.ArchCritic.Findings = []ir.Finding{{FindingID: "failed_figures", Severity: ir.SeverityCritical}}
	report, err := o.CritiqueArchitecture(context.Background(), runID, ir.SeverityMajor, nil)
	require.NoError(t, err)
	assert.True(t, report.Blocked)
	assert.Equal(t, ir.SeverityMajor, report.BlockSeverity)

	var persisted ir.ArchitectureReport
	readJSONFile(t, filepath.Join(root, runID, engine.FileArchCritique), &persisted)
	assert.True(t, persisted.Blocked)
}

func TestCritiqueArchitecture_EmptySeverityUsesConfig(t *testing.T) {
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, t.TempDir(), fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	fakes.ArchCritic.Findings = []ir.Finding{{FindingID: "failed_figures", Severity: ir.SeverityMajor}}
	report, err := o.CritiqueArchitecture(context.Background(), runID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.SeverityCritical, report.BlockSeverity)
	assert.False(t, report.Blocked)
}

func TestCritiqueArchitecture_UnknownRuleIsConfigurationError(t *testing.T) {
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, t.TempDir(), fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	_, err = o.CritiqueArchitecture(context.Background(), runID, ir.SeverityMajor, []string{"empty_plan", "bogus"})
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "bogus")
	assert.Contains(t, err.Error(), "available: empty_plan, failed_figures")
}

func TestCritiqueArchitecture_InvalidSeverityIsConfigurationError(t *testing.T) {
	fakes := testutil.NewFakes(testutil.PlanEntry("a", "A", 1))
	o := newOrchestrator(t, t.TempDir(), fakes, nil)
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)

	_, err = o.CritiqueArchitecture(context.Background(), runID, "severe", nil)
	assert.True(t, engine.IsConfigurationError(err))
}

func TestCritiqueArchitecture_MissingRunIsNotFound(t *testing.T) {
	o := newOrchestrator(t, t.TempDir(), testutil.NewFakes(), nil)
	_, err := o.CritiqueArchitecture(context.Background(), "run-missing", ir.SeverityMajor, nil)
	assert.True(t, engine.IsNotFound(err))
}

func TestListRules(t *testing.T) {
	o := newOrchestrator(t, t.TempDir(), testutil.NewFakes(), nil)
	assert.Equal(t, testutil.DefaultRules, o.ListRules())
}

func TestDocsCheck(t *testing.T) {
	fakes := testutil.NewFakes()
	fakes.Drift.DriftDetected = true
	o := newOrchestrator(t, t.TempDir(), fakes, nil)

	report, err := o.DocsCheck(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DriftDetected)
	assert.True(t, report.CheckOnly)
	assert.Equal(t, engine.DefaultManifestPath, report.ManifestPath)
}
