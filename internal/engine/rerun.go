package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/paperfig/internal/ir"
)

// Rerun replays a prior run from its persisted plan. The planner is never
// consulted: plan.json is the only input that decides the figure set.
//
// The new run is configured from the source run's recorded parameters and
// style_refs.json; non-nil override fields take precedence. The document is
// re-parsed from the recorded source path, or rebuilt from sections.json
// when that file no longer exists.
func (o *Orchestrator) Rerun(ctx context.Context, sourceRunID string, overrides RerunOverrides) (string, error) {
	ctx, span := o.startSpan(ctx, "paperfig.rerun", attribute.String("rerun_of", sourceRunID))
	var err error
	defer func() { endSpan(span, err) }()

	srcDir, err := o.runDir(sourceRunID)
	if err != nil {
		return "", err
	}

	rec, plan, err := loadReplayInputs(sourceRunID, srcDir)
	if err != nil {
		return "", err
	}
	meta := rec.meta

	cfg := configFromMetadata(o.cfg, rec, overrides)
	refs, recordedRefs, err := loadStyleRefs(srcDir)
	if err != nil {
		return "", err
	}
	if recordedRefs {
		cfg.StyleRefs = refs
	}
	replay, err := o.withConfig(cfg)
	if err != nil {
		return "", err
	}

	doc, err := o.replayDocument(ctx, sourceRunID, srcDir, meta.SourcePath)
	if err != nil {
		return "", err
	}

	o.logger.Info("rerun from persisted plan", "rerun_of", sourceRunID, "figures", len(plan))
	runID, err := replay.execute(ctx, runInput{
		sourcePath: meta.SourcePath,
		doc:        doc,
		plan:       plan,
		rerunOf:    sourceRunID,
		reusedPlan: true,
	})
	span.SetAttributes(attribute.String("run_id", runID))
	return runID, err
}

// loadReplayInputs reads run.json and plan.json of the source run.
func loadReplayInputs(runID, runDir string) (recordedRun, []ir.FigurePlan, error) {
	var rec recordedRun
	data, err := os.ReadFile(filepath.Join(runDir, FileRunMetadata))
	if err == nil {
		rec, err = decodeRecordedRun(data)
	}
	if err != nil {
		return rec, nil, &RunError{
			Code:    ErrCodeConfiguration,
			Message: fmt.Sprintf("run %s is missing valid %s metadata", runID, FileRunMetadata),
			RunID:   runID,
			Err:     err,
		}
	}

	var plan []ir.FigurePlan
	if err := readJSON(filepath.Join(runDir, FilePlan), &plan); err != nil {
		return rec, nil, &RunError{
			Code:    ErrCodeConfiguration,
			Message: fmt.Sprintf("run %s is missing a valid %s", runID, FilePlan),
			RunID:   runID,
			Err:     err,
		}
	}
	if len(plan) == 0 {
		return rec, nil, &RunError{
			Code:    ErrCodeConfiguration,
			Message: fmt.Sprintf("run %s has an empty %s; cannot rerun deterministically", runID, FilePlan),
			RunID:   runID,
		}
	}
	return rec, plan, nil
}

// loadStyleRefs reads the source run's style_refs.json. Runs recorded
// without one report ok=false and keep the current style references.
func loadStyleRefs(runDir string) (map[string]any, bool, error) {
	refs := map[string]any{}
	err := readJSON(filepath.Join(runDir, FileStyleRefs), &refs)
	if isNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewConfigurationError(fmt.Sprintf("invalid %s", FileStyleRefs), err)
	}
	return refs, true, nil
}

func (o *Orchestrator) replayDocument(ctx context.Context, runID, runDir, sourcePath string) (*ir.Document, error) {
	if sourcePath != "" && fileExists(sourcePath) {
		doc, err := o.deps.Parser.Parse(ctx, sourcePath)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("parse %s", sourcePath))
		}
		return doc, nil
	}

	sections := map[string]ir.Section{}
	if err := readJSON(filepath.Join(runDir, FileSections), &sections); err != nil {
		return nil, &RunError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("source document %q not found and %s unavailable", sourcePath, FileSections),
			RunID:   runID,
			Err:     err,
		}
	}
	o.logger.Warn("source document missing, replaying from persisted sections",
		"run_id", runID, "source", sourcePath)
	return &ir.Document{SourcePath: sourcePath, Sections: sections}, nil
}
