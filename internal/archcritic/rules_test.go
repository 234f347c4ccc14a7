package archcritic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func ptr(f float64) *float64 { return &f }

func ruleByID(t *testing.T, id string) Rule {
	t.Helper()
	for _, r := range Rules {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("rule %s not registered", id)
	return Rule{}
}

func TestRegistryIsSortedAndComplete(t *testing.T) {
	var ids []string
	for _, r := range Rules {
		ids = append(ids, r.ID)
		assert.NotEmpty(t, r.Description, r.ID)
		assert.True(t, r.Severity.Valid(), r.ID)
	}
	assert.Equal(t, []string{
		"empty_plan",
		"failed_figures",
		"invalid_template_reference",
		"missing_docs_drift_report",
		"missing_flow_docs",
		"missing_inspect",
		"missing_plan",
		"traceability_gap",
	}, ids)
}

func TestRules(t *testing.T) {
	cases := []struct {
		name     string
		rule     string
		rc       RuleContext
		severity ir.Severity
		evidence string
	}{
		{"empty plan fires", "empty_plan", RuleContext{PlanPresent: true}, ir.SeverityCritical, "plan.json contains 0 entries"},
		{"missing plan is not empty", "empty_plan", RuleContext{}, "", ""},
		{"failed figures", "failed_figures",
			RuleContext{Inspect: &engine.InspectSummary{Aggregate: engine.InspectAggregate{FailedCount: 2}}},
			ir.SeverityMajor, "failed_count=2"},
		{"no failures", "failed_figures", RuleContext{Inspect: &engine.InspectSummary{}}, "", ""},
		{"unknown templates", "invalid_template_reference",
			RuleContext{
				PlanPresent: true,
				Plan: []ir.FigurePlan{
					{TemplateID: "zeta"}, {TemplateID: "known"}, {TemplateID: "heuristic_fallback"},
					{TemplateID: "manual"}, {TemplateID: ""}, {TemplateID: "alpha"}, {TemplateID: "zeta"},
				},
				TemplateIDs: map[string]bool{"known": true},
			},
			ir.SeverityMajor, "alpha, zeta"},
		{"no catalog skips template check", "invalid_template_reference",
			RuleContext{PlanPresent: true, Plan: []ir.FigurePlan{{TemplateID: "zeta"}}, TemplateIDs: map[string]bool{}},
			"", ""},
		{"drift report missing", "missing_docs_drift_report", RuleContext{RunDir: "/runs/r"}, ir.SeverityMinor, filepath.Join("/runs/r", "docs_drift_report.json")},
		{"drift report present", "missing_docs_drift_report", RuleContext{DriftReport: &ir.DocsDriftReport{}}, "", ""},
		{"inspect missing", "missing_inspect", RuleContext{}, ir.SeverityMajor, "inspect.json"},
		{"plan missing", "missing_plan", RuleContext{}, ir.SeverityCritical, "plan.json"},
		{"low coverage", "traceability_gap",
			RuleContext{Inspect: &engine.InspectSummary{Aggregate: engine.InspectAggregate{AvgTraceabilityCoverage: ptr(0.5)}}},
			ir.SeverityMajor, "avg_traceability_coverage=0.5"},
		{"coverage at threshold", "traceability_gap",
			RuleContext{Inspect: &engine.InspectSummary{Aggregate: engine.InspectAggregate{AvgTraceabilityCoverage: ptr(0.8)}}},
			"", ""},
		{"coverage undefined", "traceability_gap", RuleContext{Inspect: &engine.InspectSummary{}}, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			findings := ruleByID(t, tc.rule).Check(&tc.rc)
			if tc.severity == "" {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, tc.rule, findings[0].FindingID)
			assert.Equal(t, tc.severity, findings[0].Severity)
			assert.Contains(t, findings[0].Evidence, tc.evidence)
		})
	}
}

func TestCheckFlowDocs(t *testing.T) {
	repo := t.TempDir()
	rule := ruleByID(t, "missing_flow_docs")

	findings := rule.Check(&RuleContext{RepoRoot: repo})
	require.Len(t, findings, 1)
	assert.Equal(t, ir.SeverityMajor, findings[0].Severity)

	flows := filepath.Join(repo, "docs", "architecture", "flows")
	for _, f := range []string{"generate/README.md", "generate/diagram.mermaid", "rerun/README.md"} {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(flows, f)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(flows, f), []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(flows, "audit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(flows, "notes.txt"), []byte("x"), 0o644))

	findings = rule.Check(&RuleContext{RepoRoot: repo})
	require.Len(t, findings, 1)
	assert.Equal(t, ir.SeverityMinor, findings[0].Severity)
	assert.Equal(t, "audit: README.md, diagram.mermaid; rerun: diagram.mermaid", findings[0].Evidence)

	require.NoError(t, os.WriteFile(filepath.Join(flows, "rerun", "diagram.mermaid"), []byte("x"), 0o644))
	require.NoError(t, os.RemoveAll(filepath.Join(flows, "audit")))
	assert.Empty(t, rule.Check(&RuleContext{RepoRoot: repo}))
}

type staticTemplates map[string][]string

func (s staticTemplates) TemplateIDs(pack string) ([]string, error) {
	ids, ok := s[pack]
	if !ok {
		return nil, os.ErrNotExist
	}
	return ids, nil
}

func TestLoadContext(t *testing.T) {
	runDir := t.TempDir()
	writeJSON(t, filepath.Join(runDir, engine.FileRunMetadata), ir.RunMetadata{RunID: "r", TemplatePack: "p1"})
	writeJSON(t, filepath.Join(runDir, engine.FilePlan), []ir.FigurePlan{{FigureID: "a", TemplateID: "t1"}})
	require.NoError(t, os.WriteFile(filepath.Join(runDir, engine.FileInspect), []byte("{broken"), 0o644))

	rc := loadContext(runDir, "/repo", staticTemplates{"p1": {"t1", "t2"}})
	require.NotNil(t, rc.Metadata)
	assert.True(t, rc.PlanPresent)
	assert.Len(t, rc.Plan, 1)
	assert.Nil(t, rc.Inspect, "unreadable inspect is treated as missing")
	assert.Nil(t, rc.DriftReport)
	assert.Equal(t, map[string]bool{"t1": true, "t2": true}, rc.TemplateIDs)

	writeJSON(t, filepath.Join(runDir, engine.FileRunMetadata), ir.RunMetadata{RunID: "r", TemplatePack: "gone"})
	rc = loadContext(runDir, "/repo", staticTemplates{"p1": {"t1"}})
	assert.Empty(t, rc.TemplateIDs, "catalog errors yield no template ids")
}
