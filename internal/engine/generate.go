package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/paperfig/internal/ir"
)

// runInput is everything execute needs to produce one run.
type runInput struct {
	sourcePath string
	doc        *ir.Document
	plan       []ir.FigurePlan
	rerunOf    string
	reusedPlan bool
}

// aggregateTraceability is the run-level traceability.json document.
type aggregateTraceability struct {
	Figures []ir.TraceabilityRecord `json:"figures"`
}

// Generate parses the document at sourcePath, derives a plan, and executes a
// full run. It returns the new run id.
//
// A GateFailure is returned with the run id populated; the run directory and
// all reports written before the failing gate remain on disk.
func (o *Orchestrator) Generate(ctx context.Context, sourcePath string) (string, error) {
	ctx, span := o.startSpan(ctx, "paperfig.generate", attribute.String("source_path", sourcePath))
	var err error
	defer func() { endSpan(span, err) }()

	doc, err := o.deps.Parser.Parse(ctx, sourcePath)
	if err != nil {
		err = classify(err, fmt.Sprintf("parse %s", sourcePath))
		return "", err
	}

	plan, err := o.deps.Planner.Plan(ctx, doc, o.cfg.TemplatePack)
	if err != nil {
		err = classify(err, "derive figure plan")
		return "", err
	}

	runID, err := o.execute(ctx, runInput{sourcePath: sourcePath, doc: doc, plan: plan})
	span.SetAttributes(attribute.String("run_id", runID))
	return runID, err
}

func validatePlan(plan []ir.FigurePlan) error {
	seen := make(map[string]bool, len(plan))
	for i, p := range plan {
		if p.FigureID == "" {
			return NewConfigurationError(fmt.Sprintf("plan entry %d has no figure_id", i), nil)
		}
		if strings.ContainsAny(p.FigureID, `/\`) || p.FigureID == "." || p.FigureID == ".." {
			return NewConfigurationError(fmt.Sprintf("plan entry %d has invalid figure_id %q", i, p.FigureID), nil)
		}
		if seen[p.FigureID] {
			return NewConfigurationError(fmt.Sprintf("duplicate figure_id %q in plan", p.FigureID), nil)
		}
		seen[p.FigureID] = true
	}
	return nil
}

// execute runs the per-figure loop and the finalization pipeline.
func (o *Orchestrator) execute(ctx context.Context, in runInput) (runID string, err error) {
	if err := validatePlan(in.plan); err != nil {
		return "", err
	}

	now := o.clock.Now()
	runID = o.ids.Generate(now)
	runDir := RunDir(o.cfg.RunRoot, runID)
	if err := os.MkdirAll(filepath.Join(runDir, DirFigures), 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	logger := o.logger.With("run_id", runID)
	logger.Info("run started", "source", in.sourcePath, "figures", len(in.plan), "rerun_of", in.rerunOf)

	meta := o.runMetadata(runID, in, now)
	o.recordStarted(ctx, meta)

	total, accepted := len(in.plan), 0
	defer func() {
		o.recordFinished(ctx, runID, total, accepted, err)
	}()

	if err := o.writeRunInputs(runDir, meta, in); err != nil {
		return runID, err
	}
	contrib := o.newContribLog(runDir)
	contrib.logf("start run_id=%s source=%s", runID, in.sourcePath)
	if o.cfg.Contrib {
		if err := writePlannerNotes(runDir, in.plan); err != nil {
			return runID, err
		}
		contrib.logf("planner completed figures=%d", len(in.plan))
	}

	captions := make([]string, 0, len(in.plan))
	traces := aggregateTraceability{Figures: []ir.TraceabilityRecord{}}

	for _, plan := range in.plan {
		out, err := o.runFigure(ctx, figureRun{
			runID:   runID,
			runDir:  runDir,
			plan:    plan,
			doc:     in.doc,
			logger:  logger,
			contrib: contrib,
		})
		if err != nil {
			return runID, err
		}
		if out.accepted {
			accepted++
		}
		captions = append(captions, fmt.Sprintf("%s: %s - %s", plan.FigureID, plan.Title, plan.Justification))
		if out.trace != nil {
			traces.Figures = append(traces.Figures, *out.trace)
		}
	}

	if err := os.WriteFile(filepath.Join(runDir, FileCaptions), []byte(strings.Join(captions, "\n")), 0o644); err != nil {
		return runID, fmt.Errorf("write captions: %w", err)
	}
	if err := writeJSON(filepath.Join(runDir, FileTraceability), traces); err != nil {
		return runID, err
	}

	if err := o.finalize(ctx, runID, runDir, contrib); err != nil {
		return runID, err
	}
	if o.cfg.Contrib {
		if err := o.writeContributingNotes(runID, runDir); err != nil {
			return runID, err
		}
		contrib.logf("contributing notes written")
	}

	logger.Info("run finished", "accepted", accepted, "total", total)
	return runID, nil
}

func (o *Orchestrator) runMetadata(runID string, in runInput, now time.Time) ir.RunMetadata {
	return ir.RunMetadata{
		RunID:                     runID,
		SourcePath:                in.sourcePath,
		CreatedAt:                 formatTimestamp(now),
		MaxIterations:             o.cfg.MaxIterations,
		QualityThreshold:          o.cfg.QualityThreshold,
		DimensionThreshold:        o.cfg.DimensionThreshold,
		TemplatePack:              o.cfg.TemplatePack,
		ArchCritiqueMode:          o.cfg.ArchCritiqueMode,
		ArchCritiqueBlockSeverity: o.cfg.ArchCritiqueBlockSeverity,
		ArchCritiqueRules:         append([]string{}, o.cfg.ArchCritiqueRules...),
		ReproAuditMode:            o.cfg.ReproAuditMode,
		DocsAutoRegen:             o.cfg.DocsAutoRegen,
		ConfigHash:                o.cfg.ConfigHash,
		Seed:                      o.cfg.Seed,
		EngineVersion:             ir.EngineVersion,
		SchemaVersion:             ir.SchemaVersion,
		RerunOf:                   in.rerunOf,
		ReusedPlan:                in.reusedPlan,
	}
}

// writeRunInputs persists run.json, sections.json and plan.json.
func (o *Orchestrator) writeRunInputs(runDir string, meta ir.RunMetadata, in runInput) error {
	if err := writeJSON(filepath.Join(runDir, FileRunMetadata), meta); err != nil {
		return err
	}

	sections := map[string]ir.Section{}
	if in.doc != nil && in.doc.Sections != nil {
		sections = in.doc.Sections
	}
	if err := writeJSON(filepath.Join(runDir, FileSections), sections); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(runDir, FileStyleRefs), o.styleRefs()); err != nil {
		return err
	}

	plan := make([]ir.FigurePlan, len(in.plan))
	for i, p := range in.plan {
		p.Normalize()
		plan[i] = p
	}
	return writeJSON(filepath.Join(runDir, FilePlan), plan)
}

func (o *Orchestrator) styleRefs() map[string]any {
	if o.cfg.StyleRefs == nil {
		return map[string]any{}
	}
	return o.cfg.StyleRefs
}

func (o *Orchestrator) recordStarted(ctx context.Context, meta ir.RunMetadata) {
	if o.deps.Index == nil {
		return
	}
	err := o.deps.Index.RecordRunStarted(ctx, RunRecord{
		RunID:      meta.RunID,
		SourcePath: meta.SourcePath,
		CreatedAt:  meta.CreatedAt,
		RerunOf:    meta.RerunOf,
		ConfigHash: meta.ConfigHash,
	})
	if err != nil {
		o.logger.Warn("run index update failed", "run_id", meta.RunID, "error", err)
	}
}

func (o *Orchestrator) recordFinished(ctx context.Context, runID string, total, accepted int, runErr error) {
	if o.deps.Index == nil {
		return
	}
	out := RunOutcome{
		RunID:         runID,
		Status:        RunStatusSucceeded,
		FinishedAt:    formatTimestamp(o.clock.Now()),
		TotalFigures:  total,
		AcceptedCount: accepted,
	}
	if runErr != nil {
		out.Status = RunStatusFailed
		out.Error = runErr.Error()
	}
	if err := o.deps.Index.RecordRunFinished(context.WithoutCancel(ctx), out); err != nil {
		o.logger.Warn("run index update failed", "run_id", runID, "error", err)
	}
}
