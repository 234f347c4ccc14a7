package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// Figure change classifications.
const (
	ChangeAdded    = "added_in_run_2"
	ChangeRemoved  = "removed_in_run_2"
	ChangeModified = "modified"
)

// MetricDelta compares one aggregate metric across two runs. Delta is nil
// when either side is nil.
type MetricDelta struct {
	Run1  *float64 `json:"run_1"`
	Run2  *float64 `json:"run_2"`
	Delta *float64 `json:"delta"`
}

// FigureState is the compared state of one figure in one run.
type FigureState struct {
	FinalScore  *float64 `json:"final_score"`
	FinalPassed *bool    `json:"final_passed"`
	SVGHash     *string  `json:"svg_hash"`
}

// FigureChange is one changed figure.
type FigureChange struct {
	FigureID string       `json:"figure_id"`
	Change   string       `json:"change"`
	Run1     *FigureState `json:"run_1,omitempty"`
	Run2     *FigureState `json:"run_2,omitempty"`
}

// DiffSummary counts changes.
type DiffSummary struct {
	ChangedFigureCount   int `json:"changed_figure_count"`
	ChangedArtifactCount int `json:"changed_artifact_count"`
}

// DiffReport is persisted as diff.json.
type DiffReport struct {
	RunID1           string                 `json:"run_id_1"`
	RunID2           string                 `json:"run_id_2"`
	GeneratedAt      string                 `json:"generated_at"`
	Metrics          map[string]MetricDelta `json:"metrics"`
	ChangedFigures   []FigureChange         `json:"changed_figures"`
	ChangedArtifacts []string               `json:"changed_artifacts"`
	Summary          DiffSummary            `json:"summary"`
	DiffDir          string                 `json:"diff_dir"`
}

// Diff compares two runs and writes diff.json into outputDir, or into a
// fresh <run_root>/diffs/diff-<id1>-vs-<id2>-<stamp> directory when
// outputDir is empty.
//
// Each run's inspect.json is used when present. Otherwise the snapshot is
// built from disk and saved next to diff.json as inspect_<run_id>.json;
// the source runs are never written.
func (o *Orchestrator) Diff(ctx context.Context, runID1, runID2, outputDir string) (*DiffReport, error) {
	_, span := o.startSpan(ctx, "paperfig.diff",
		attribute.String("run_id_1", runID1), attribute.String("run_id_2", runID2))
	var err error
	defer func() { endSpan(span, err) }()

	dir1, err := o.runDir(runID1)
	if err != nil {
		return nil, err
	}
	dir2, err := o.runDir(runID2)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	diffDir := outputDir
	if diffDir == "" {
		diffDir, err = claimDir(filepath.Join(o.cfg.RunRoot, DirDiffs,
			fmt.Sprintf("diff-%s-vs-%s-%s", runID1, runID2, now.UTC().Format("20060102-150405"))))
	} else {
		err = os.MkdirAll(diffDir, 0o755)
	}
	if err != nil {
		return nil, fmt.Errorf("create diff dir: %w", err)
	}

	snap1, err := o.loadOrBuildInspect(runID1, dir1, diffDir)
	if err != nil {
		return nil, err
	}
	snap2, err := o.loadOrBuildInspect(runID2, dir2, diffDir)
	if err != nil {
		return nil, err
	}

	figures, err := o.diffFigures(dir1, snap1, dir2, snap2)
	if err != nil {
		return nil, err
	}
	artifacts, err := diffJSONArtifacts(dir1, dir2)
	if err != nil {
		return nil, err
	}

	a1, a2 := snap1.Aggregate, snap2.Aggregate
	report := &DiffReport{
		RunID1:      runID1,
		RunID2:      runID2,
		GeneratedAt: formatTimestamp(now),
		Metrics: map[string]MetricDelta{
			"accepted_count":            metricDelta(countValue(a1.AcceptedCount), countValue(a2.AcceptedCount)),
			"avg_final_score":           metricDelta(a1.AvgFinalScore, a2.AvgFinalScore),
			"avg_traceability_coverage": metricDelta(a1.AvgTraceabilityCoverage, a2.AvgTraceabilityCoverage),
		},
		ChangedFigures:   figures,
		ChangedArtifacts: artifacts,
		Summary: DiffSummary{
			ChangedFigureCount:   len(figures),
			ChangedArtifactCount: len(artifacts),
		},
		DiffDir: diffDir,
	}
	if err = writeJSON(filepath.Join(diffDir, FileDiff), report); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("changed_figures", len(figures)), attribute.Int("changed_artifacts", len(artifacts)))
	return report, nil
}

func (o *Orchestrator) loadOrBuildInspect(runID, runDir, diffDir string) (*InspectSummary, error) {
	var snap InspectSummary
	err := readJSON(filepath.Join(runDir, FileInspect), &snap)
	if err == nil {
		return &snap, nil
	}
	if !isNotExist(err) {
		o.logger.Warn("inspect snapshot unreadable, rebuilding", "run_id", runID, "error", err)
	}

	built, err := o.buildInspect(runID, runDir, InspectFilter{})
	if err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(diffDir, "inspect_"+runID+".json"), built); err != nil {
		return nil, err
	}
	return built, nil
}

func (o *Orchestrator) diffFigures(dir1 string, snap1 *InspectSummary, dir2 string, snap2 *InspectSummary) ([]FigureChange, error) {
	byID1 := make(map[string]FigureSummary, len(snap1.Figures))
	byID2 := make(map[string]FigureSummary, len(snap2.Figures))
	ids := map[string]bool{}
	for _, f := range snap1.Figures {
		byID1[f.FigureID] = f
		ids[f.FigureID] = true
	}
	for _, f := range snap2.Figures {
		byID2[f.FigureID] = f
		ids[f.FigureID] = true
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	changes := []FigureChange{}
	for _, id := range sorted {
		f1, in1 := byID1[id]
		f2, in2 := byID2[id]
		switch {
		case !in1:
			changes = append(changes, FigureChange{FigureID: id, Change: ChangeAdded})
			continue
		case !in2:
			changes = append(changes, FigureChange{FigureID: id, Change: ChangeRemoved})
			continue
		}

		s1, err := o.figureState(dir1, f1)
		if err != nil {
			return nil, err
		}
		s2, err := o.figureState(dir2, f2)
		if err != nil {
			return nil, err
		}
		if s1.equal(s2) {
			continue
		}
		changes = append(changes, FigureChange{FigureID: id, Change: ChangeModified, Run1: &s1, Run2: &s2})
	}
	return changes, nil
}

func (o *Orchestrator) figureState(runDir string, f FigureSummary) (FigureState, error) {
	st := FigureState{FinalScore: f.FinalScore, FinalPassed: f.FinalPassed}
	digest, err := o.fileDigest(filepath.Join(FinalDir(runDir, f.FigureID), ArtifactSVG))
	if err != nil {
		return st, fmt.Errorf("hash final artifact of %s: %w", f.FigureID, err)
	}
	if digest != "" {
		st.SVGHash = &digest
	}
	return st, nil
}

func (s FigureState) equal(other FigureState) bool {
	return floatPtrEqual(s.FinalScore, other.FinalScore) &&
		boolPtrEqual(s.FinalPassed, other.FinalPassed) &&
		stringPtrEqual(s.SVGHash, other.SVGHash)
}

// diffJSONArtifacts lists top-level *.json files whose bytes differ or that
// exist in only one run.
// claimDir creates base, or base-2, base-3, ... when base already exists.
func claimDir(base string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return "", err
	}
	for n := 1; ; n++ {
		dir := base
		if n > 1 {
			dir = fmt.Sprintf("%s-%d", base, n)
		}
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
}

func diffJSONArtifacts(dir1, dir2 string) ([]string, error) {
	names := map[string]bool{}
	for _, dir := range []string{dir1, dir2} {
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			names[filepath.Base(m)] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	changed := []string{}
	for _, name := range sorted {
		b1, err1 := os.ReadFile(filepath.Join(dir1, name))
		b2, err2 := os.ReadFile(filepath.Join(dir2, name))
		switch {
		case err1 != nil && !isNotExist(err1):
			return nil, err1
		case err2 != nil && !isNotExist(err2):
			return nil, err2
		case (err1 == nil) != (err2 == nil):
			changed = append(changed, name)
		case err1 == nil && !bytes.Equal(b1, b2):
			changed = append(changed, name)
		}
	}
	return changed, nil
}

func metricDelta(a, b *float64) MetricDelta {
	m := MetricDelta{Run1: a, Run2: b}
	if a != nil && b != nil {
		d := *b - *a
		m.Delta = &d
	}
	return m
}

func countValue(n int) *float64 {
	f := float64(n)
	return &f
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
