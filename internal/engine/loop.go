package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/paperfig/internal/ir"
)

// figureRun is the input of one figure's generate/critique loop.
type figureRun struct {
	runID   string
	runDir  string
	plan    ir.FigurePlan
	doc     *ir.Document
	logger  *slog.Logger
	contrib *contribLog
}

// figureOutcome is the result of one figure's loop.
type figureOutcome struct {
	accepted   bool
	iterations int
	// trace is the final traceability record, nil when the generator
	// produced no readable record.
	trace *ir.TraceabilityRecord
}

// attempt is one fully critiqued iteration.
type attempt struct {
	iteration int
	candidate ir.Candidate
	report    ir.CritiqueReport
}

// runFigure executes up to MaxIterations generate/critique rounds for one
// figure and then copies exactly one artifact set into final/.
//
// A collaborator error on iteration 1 is a GenerationFailure for the run.
// A later error stops the loop; the last fully critiqued iteration becomes
// the fallback.
func (o *Orchestrator) runFigure(ctx context.Context, fr figureRun) (figureOutcome, error) {
	ctx, span := o.startSpan(ctx, "paperfig.figure",
		attribute.String("run_id", fr.runID),
		attribute.String("figure_id", fr.plan.FigureID))
	var err error
	defer func() { endSpan(span, err) }()

	logger := fr.logger.With("figure_id", fr.plan.FigureID)

	var (
		last     *attempt
		feedback *ir.CritiqueFeedback
	)
	for iteration := 1; iteration <= o.cfg.MaxIterations; iteration++ {
		if err = ctx.Err(); err != nil {
			return figureOutcome{}, err
		}

		var a attempt
		a, err = o.runIteration(ctx, fr, iteration, feedback)
		if err != nil {
			if last == nil {
				err = NewGenerationFailure(fr.runID, fr.plan.FigureID, err)
				return figureOutcome{}, err
			}
			logger.Warn("iteration failed, falling back to last critiqued iteration",
				"iteration", iteration, "fallback_iteration", last.iteration, "error", err)
			err = nil
			break
		}
		last = &a

		logger.Info("iteration critiqued",
			"iteration", iteration, "score", a.report.Score, "passed", a.report.Passed)
		fr.contrib.logf("critique figure=%s iteration=%d score=%v passed=%t",
			fr.plan.FigureID, iteration, a.report.Score, a.report.Passed)

		if a.report.Passed {
			break
		}
		feedback = a.report.Feedback()
	}

	out := figureOutcome{iterations: last.iteration}
	if last.report.Passed {
		out.accepted = true
		o.metrics.add(ctx, o.metrics.accepted)
		logger.Info("figure accepted", "iteration", last.iteration)
		fr.contrib.logf("accepted figure=%s iteration=%d", fr.plan.FigureID, last.iteration)
	} else {
		o.metrics.add(ctx, o.metrics.fallbacks)
		logger.Info("figure not accepted, using last iteration as fallback", "iteration", last.iteration)
		fr.contrib.logf("fallback-final figure=%s iteration=%d", fr.plan.FigureID, last.iteration)
	}

	if err = promoteFinal(fr.runDir, fr.plan.FigureID, last.candidate); err != nil {
		return figureOutcome{}, err
	}

	var rec ir.TraceabilityRecord
	tracePath := filepath.Join(FinalDir(fr.runDir, fr.plan.FigureID), ArtifactTrace)
	if readErr := readJSON(tracePath, &rec); readErr != nil {
		logger.Warn("final traceability unreadable", "error", readErr)
	} else {
		out.trace = &rec
	}
	span.SetAttributes(attribute.Bool("accepted", out.accepted), attribute.Int("iterations", out.iterations))
	return out, nil
}

// runIteration performs one generate + critique round and persists the
// critique report.
func (o *Orchestrator) runIteration(ctx context.Context, fr figureRun, iteration int, feedback *ir.CritiqueFeedback) (attempt, error) {
	ctx, span := o.startSpan(ctx, "paperfig.iteration",
		attribute.String("figure_id", fr.plan.FigureID),
		attribute.Int("iteration", iteration))
	var err error
	defer func() { endSpan(span, err) }()

	o.metrics.add(ctx, o.metrics.iterations)
	fr.contrib.logf("generate figure=%s iteration=%d", fr.plan.FigureID, iteration)

	iterDir := IterationDir(fr.runDir, fr.plan.FigureID, iteration)
	candidate, err := o.deps.Generator.Generate(ctx, GenerateRequest{
		Plan:      fr.plan,
		Document:  fr.doc,
		Iteration: iteration,
		OutputDir: iterDir,
		Feedback:  feedback,
		StyleRefs: o.styleRefs(),
	})
	if err != nil {
		err = fmt.Errorf("generate iteration %d: %w", iteration, err)
		return attempt{}, err
	}

	report, err := o.deps.Critic.Critique(ctx, CritiqueRequest{
		ArtifactPath:       candidate.ArtifactPath,
		Plan:               fr.plan,
		Document:           fr.doc,
		Threshold:          o.cfg.QualityThreshold,
		DimensionThreshold: o.cfg.DimensionThreshold,
	})
	if err != nil {
		err = fmt.Errorf("critique iteration %d: %w", iteration, err)
		return attempt{}, err
	}
	if report.FigureID == "" {
		report.FigureID = fr.plan.FigureID
	}
	report.Normalize()

	if err = writeJSON(filepath.Join(iterDir, ArtifactCritique), report); err != nil {
		return attempt{}, err
	}
	if o.cfg.Contrib {
		if err = writeCriticNotes(iterDir, report); err != nil {
			return attempt{}, err
		}
	}
	span.SetAttributes(attribute.Float64("score", report.Score), attribute.Bool("passed", report.Passed))
	return attempt{iteration: iteration, candidate: candidate, report: report}, nil
}

// promoteFinal copies one iteration's artifact set into final/.
func promoteFinal(runDir, figureID string, c ir.Candidate) error {
	finalDir := FinalDir(runDir, figureID)
	copies := []struct{ src, name string }{
		{c.ArtifactPath, ArtifactSVG},
		{c.ElementMetadataPath, ArtifactElements},
		{c.TraceabilityPath, ArtifactTrace},
	}
	for _, cp := range copies {
		if err := copyFile(cp.src, filepath.Join(finalDir, cp.name)); err != nil {
			return fmt.Errorf("promote %s for %s: %w", cp.name, figureID, err)
		}
	}
	return nil
}
