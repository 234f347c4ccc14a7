package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/testutil"
)

// threeFigureRun generates a run where a fails on readability, b passes at
// 0.9 and c passes at 0.8 on the second try after failing aesthetics.
func threeFigureRun(t *testing.T) (*engine.Orchestrator, string) {
	t.Helper()
	fakes := testutil.NewFakes(
		testutil.PlanEntry("a", "Figure A", 1),
		testutil.PlanEntry("b", "Figure B", 2),
		testutil.PlanEntry("c", "Figure C", 3),
	)
	fakes.Critic.Scripts = map[string][]ir.CritiqueReport{
		"a": {testutil.Fail(0.4, "Readability")},
		"c": {testutil.Fail(0.5, "aesthetics"), testutil.Pass(0.8)},
	}
	o := newOrchestrator(t, t.TempDir(), fakes, func(c *engine.Config) { c.MaxIterations = 2 })
	runID, err := o.Generate(context.Background(), "paper.md")
	require.NoError(t, err)
	return o, runID
}

func figureIDs(s *engine.InspectSummary) []string {
	var ids []string
	for _, f := range s.Figures {
		ids = append(ids, f.FigureID)
	}
	return ids
}

func TestInspect_FullSummary(t *testing.T) {
	o, runID := threeFigureRun(t)

	s, err := o.Inspect(context.Background(), runID, engine.InspectFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, figureIDs(s))
	assert.Equal(t, 3, s.PlanCount)
	require.NotNil(t, s.Metadata)
	assert.Equal(t, runID, s.Metadata.RunID)
	assert.Empty(t, s.Warnings)

	c := s.Figures[2]
	require.Len(t, c.IterationHistory, 2)
	assert.False(t, c.IterationHistory[0].Passed)
	assert.Equal(t, []string{"aesthetics"}, c.IterationHistory[0].FailedDimensions)
	assert.True(t, c.IterationHistory[1].Passed)
	assert.Empty(t, c.FailedDimensions)
	require.NotNil(t, c.FinalSVGPath)
	assert.FileExists(t, *c.FinalSVGPath)

	require.NotNil(t, c.Traceability.Coverage)
	assert.Equal(t, 1.0, *c.Traceability.Coverage)
	assert.Equal(t, 1, c.Traceability.TotalElements)

	agg := s.Aggregate
	assert.Equal(t, 3, agg.TotalFigures)
	assert.Equal(t, 2, agg.AcceptedCount)
	assert.Equal(t, 1, agg.FailedCount)
	require.NotNil(t, agg.AvgFinalScore)
	assert.InDelta(t, (0.4+0.9+0.8)/3, *agg.AvgFinalScore, 1e-9)
	assert.Equal(t, []string{"a"}, agg.MaxIterationsHit)
}

func TestInspect_Filters(t *testing.T) {
	o, runID := threeFigureRun(t)
	minScore := 0.85

	cases := []struct {
		name     string
		filter   engine.InspectFilter
		want     []string
		accepted int
	}{
		{"figure id", engine.InspectFilter{FigureID: "b"}, []string{"b"}, 1},
		{"failures only", engine.InspectFilter{FailuresOnly: true}, []string{"a"}, 0},
		{"min score", engine.InspectFilter{MinScore: &minScore}, []string{"b"}, 1},
		{"failed dimension case-insensitive", engine.InspectFilter{FailedDimension: "READABILITY"}, []string{"a"}, 0},
		{"no match", engine.InspectFilter{FigureID: "zzz"}, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := o.Inspect(context.Background(), runID, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, figureIDs(s))
			assert.Equal(t, len(tc.want), s.Aggregate.TotalFigures)
			assert.Equal(t, tc.accepted, s.Aggregate.AcceptedCount)
		})
	}
}

func TestInspect_FiltersDoNotTouchSnapshot(t *testing.T) {
	o, runID := threeFigureRun(t)
	snapshot := filepath.Join(o.Config().RunRoot, runID, engine.FileInspect)
	before, err := os.ReadFile(snapshot)
	require.NoError(t, err)

	_, err = o.Inspect(context.Background(), runID, engine.InspectFilter{FailuresOnly: true})
	require.NoError(t, err)

	after, err := os.ReadFile(snapshot)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestInspect_EmptyFilteredSetHasNilAverages(t *testing.T) {
	o, runID := threeFigureRun(t)

	s, err := o.Inspect(context.Background(), runID, engine.InspectFilter{FigureID: "zzz"})
	require.NoError(t, err)
	assert.NotNil(t, s.Figures)
	assert.Nil(t, s.Aggregate.AvgFinalScore)
	assert.Nil(t, s.Aggregate.AvgTraceabilityCoverage)
}

func TestInspect_IncompleteRunReportsWarnings(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run-partial"), 0o755))
	o := newOrchestrator(t, root, testutil.NewFakes(), nil)

	s, err := o.Inspect(context.Background(), "run-partial", engine.InspectFilter{})
	require.NoError(t, err)
	assert.Nil(t, s.Metadata)
	assert.Empty(t, s.Figures)
	assert.Contains(t, s.Warnings, "Missing run metadata: run.json")
	assert.Contains(t, s.Warnings, "Missing plan: plan.json")
	assert.Contains(t, s.Warnings, "Missing figures directory.")
}

func TestInspect_CoverageUndefinedWithoutElements(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run-x")
	iterDir := engine.IterationDir(runDir, "x", 1)
	finalDir := engine.FinalDir(runDir, "x")
	require.NoError(t, os.MkdirAll(iterDir, 0o755))
	require.NoError(t, os.MkdirAll(finalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(iterDir, engine.ArtifactCritique),
		[]byte(`{"figure_id":"x","score":0.9,"passed":true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(finalDir, engine.ArtifactTrace),
		[]byte(`{"figure_id":"x","elements":[]}`), 0o644))

	o := newOrchestrator(t, root, testutil.NewFakes(), nil)
	s, err := o.Inspect(context.Background(), "run-x", engine.InspectFilter{})
	require.NoError(t, err)
	require.Len(t, s.Figures, 1)
	assert.Nil(t, s.Figures[0].Traceability.Coverage)
	assert.Equal(t, 0, s.Figures[0].Traceability.TotalElements)
	assert.Nil(t, s.Aggregate.AvgTraceabilityCoverage)
	assert.Equal(t, "x", s.Figures[0].Title)
	assert.Equal(t, "unknown", s.Figures[0].Kind)
}

func TestInspect_MissingCritiqueIsWarning(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run-x")
	require.NoError(t, os.MkdirAll(engine.IterationDir(runDir, "x", 1), 0o755))

	o := newOrchestrator(t, root, testutil.NewFakes(), nil)
	s, err := o.Inspect(context.Background(), "run-x", engine.InspectFilter{})
	require.NoError(t, err)
	require.Len(t, s.Figures, 1)
	assert.Equal(t, 0, s.Figures[0].IterationsAttempted)
	assert.Nil(t, s.Figures[0].FinalScore)

	found := false
	for _, w := range s.Warnings {
		if filepath.Base(w) == engine.ArtifactCritique {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", s.Warnings)
}

func TestInspect_MissingRunIsNotFound(t *testing.T) {
	o := newOrchestrator(t, t.TempDir(), testutil.NewFakes(), nil)

	_, err := o.Inspect(context.Background(), "run-missing", engine.InspectFilter{})
	assert.True(t, engine.IsNotFound(err))
	_, err = o.Inspect(context.Background(), "", engine.InspectFilter{})
	assert.True(t, engine.IsNotFound(err))
}
