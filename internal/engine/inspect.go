package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/paperfig/internal/ir"
)

// InspectFilter narrows the figures returned by Inspect. Filters apply in
// field order and never affect the persisted inspect.json.
type InspectFilter struct {
	FigureID        string
	FailuresOnly    bool
	MinScore        *float64
	FailedDimension string
}

// IterationSummary is one entry of a figure's iteration history.
type IterationSummary struct {
	Iteration        int      `json:"iteration"`
	Score            float64  `json:"score"`
	Passed           bool     `json:"passed"`
	FailedDimensions []string `json:"failed_dimensions"`
}

// TraceabilitySummary reports how many final elements cite the source.
// Coverage is nil when the figure has no elements.
type TraceabilitySummary struct {
	TotalElements  int      `json:"total_elements"`
	TracedElements int      `json:"traced_elements"`
	Coverage       *float64 `json:"coverage"`
}

// FigureSummary is the inspect view of one figure.
type FigureSummary struct {
	FigureID            string              `json:"figure_id"`
	Title               string              `json:"title"`
	Kind                string              `json:"kind"`
	TemplateID          string              `json:"template_id"`
	IterationsAttempted int                 `json:"iterations_attempted"`
	MaxIterationsHit    bool                `json:"max_iterations_hit"`
	Accepted            bool                `json:"accepted"`
	FinalScore          *float64            `json:"final_score"`
	FinalPassed         *bool               `json:"final_passed"`
	FailedDimensions    []string            `json:"failed_dimensions"`
	Issues              []string            `json:"issues"`
	Recommendations     []string            `json:"recommendations"`
	Traceability        TraceabilitySummary `json:"traceability"`
	IterationHistory    []IterationSummary  `json:"iteration_history"`
	FinalSVGPath        *string             `json:"final_svg_path"`
}

func (f FigureSummary) passed() bool {
	return f.FinalPassed != nil && *f.FinalPassed
}

// InspectAggregate totals the (filtered) figures of a run.
type InspectAggregate struct {
	TotalFigures            int      `json:"total_figures"`
	AcceptedCount           int      `json:"accepted_count"`
	FailedCount             int      `json:"failed_count"`
	AvgFinalScore           *float64 `json:"avg_final_score"`
	AvgTraceabilityCoverage *float64 `json:"avg_traceability_coverage"`
	MaxIterationsHit        []string `json:"max_iterations_hit"`
}

// InspectSummary is the full inspect result, persisted as inspect.json.
type InspectSummary struct {
	RunID     string           `json:"run_id"`
	RunDir    string           `json:"run_dir"`
	Metadata  *ir.RunMetadata  `json:"metadata"`
	PlanCount int              `json:"plan_count"`
	Figures   []FigureSummary  `json:"figures"`
	Aggregate InspectAggregate `json:"aggregate"`
	Warnings  []string         `json:"warnings"`
}

// Inspect recomputes a run summary from the files on disk. Missing
// metadata, plan, figures or critique files are reported as warnings.
func (o *Orchestrator) Inspect(ctx context.Context, runID string, filter InspectFilter) (*InspectSummary, error) {
	_, span := o.startSpan(ctx, "paperfig.inspect", attribute.String("run_id", runID))
	var err error
	defer func() { endSpan(span, err) }()

	runDir, err := o.runDir(runID)
	if err != nil {
		return nil, err
	}
	return o.buildInspect(runID, runDir, filter)
}

func (o *Orchestrator) buildInspect(runID, runDir string, filter InspectFilter) (*InspectSummary, error) {
	summary := &InspectSummary{
		RunID:    runID,
		RunDir:   runDir,
		Figures:  []FigureSummary{},
		Warnings: []string{},
	}

	maxIterations := o.cfg.MaxIterations
	var meta ir.RunMetadata
	switch err := readJSON(filepath.Join(runDir, FileRunMetadata), &meta); {
	case err == nil:
		summary.Metadata = &meta
		if meta.MaxIterations > 0 {
			maxIterations = meta.MaxIterations
		}
	case isNotExist(err):
		summary.Warnings = append(summary.Warnings, "Missing run metadata: "+FileRunMetadata)
	default:
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Unreadable run metadata: %v", err))
	}

	planByID := map[string]ir.FigurePlan{}
	var plan []ir.FigurePlan
	switch err := readJSON(filepath.Join(runDir, FilePlan), &plan); {
	case err == nil:
		summary.PlanCount = len(plan)
		for _, p := range plan {
			planByID[p.FigureID] = p
		}
	case isNotExist(err):
		summary.Warnings = append(summary.Warnings, "Missing plan: "+FilePlan)
	default:
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Unreadable plan: %v", err))
	}

	figuresDir := filepath.Join(runDir, DirFigures)
	entries, err := os.ReadDir(figuresDir)
	if err != nil {
		if !isNotExist(err) {
			return nil, fmt.Errorf("read figures dir: %w", err)
		}
		summary.Warnings = append(summary.Warnings, "Missing figures directory.")
		summary.Aggregate = aggregate(nil)
		return summary, nil
	}

	var figures []FigureSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fig, warnings := summarizeFigure(runDir, entry.Name(), planByID[entry.Name()], maxIterations)
		summary.Warnings = append(summary.Warnings, warnings...)
		figures = append(figures, fig)
	}

	figures = applyFilter(figures, filter)
	if figures == nil {
		figures = []FigureSummary{}
	}
	summary.Figures = figures
	summary.Aggregate = aggregate(figures)
	return summary, nil
}

// summarizeFigure reads one figure directory. os.ReadDir returns entries
// sorted by name, so figures come out in figure id order.
func summarizeFigure(runDir, figureID string, plan ir.FigurePlan, maxIterations int) (FigureSummary, []string) {
	var warnings []string
	figureDir := FigureDir(runDir, figureID)

	fig := FigureSummary{
		FigureID:         figureID,
		Title:            plan.Title,
		Kind:             plan.Kind,
		TemplateID:       plan.TemplateID,
		FailedDimensions: []string{},
		Issues:           []string{},
		Recommendations:  []string{},
		IterationHistory: []IterationSummary{},
	}
	if fig.Title == "" {
		fig.Title = figureID
	}
	if fig.Kind == "" {
		fig.Kind = "unknown"
	}

	var reports []ir.CritiqueReport
	for _, iteration := range iterationNumbers(figureDir) {
		critiquePath := filepath.Join(IterationDir(runDir, figureID, iteration), ArtifactCritique)
		var r ir.CritiqueReport
		if err := readJSON(critiquePath, &r); err != nil {
			if isNotExist(err) {
				warnings = append(warnings, "Missing critique file: "+critiquePath)
			} else {
				warnings = append(warnings, fmt.Sprintf("Unreadable critique file %s: %v", critiquePath, err))
			}
			continue
		}
		r.Normalize()
		reports = append(reports, r)
		fig.IterationHistory = append(fig.IterationHistory, IterationSummary{
			Iteration:        iteration,
			Score:            r.Score,
			Passed:           r.Passed,
			FailedDimensions: r.FailedDimensions,
		})
	}

	fig.IterationsAttempted = len(reports)
	if len(reports) > 0 {
		last := reports[len(reports)-1]
		score, passed := last.Score, last.Passed
		fig.FinalScore = &score
		fig.FinalPassed = &passed
		fig.Accepted = passed
		fig.FailedDimensions = last.FailedDimensions
		fig.Issues = last.Issues
		fig.Recommendations = last.Recommendations
	}
	fig.MaxIterationsHit = len(reports) > 0 && len(reports) >= maxIterations && !fig.Accepted

	finalDir := FinalDir(runDir, figureID)
	metadataCount := 0
	var elements []ir.Element
	if err := readJSON(filepath.Join(finalDir, ArtifactElements), &elements); err == nil {
		metadataCount = len(elements)
	}
	var rec ir.TraceabilityRecord
	if err := readJSON(filepath.Join(finalDir, ArtifactTrace), &rec); err != nil && !isNotExist(err) {
		warnings = append(warnings, fmt.Sprintf("Unreadable traceability for %s: %v", figureID, err))
	}
	total, traced := rec.Coverage(metadataCount)
	fig.Traceability = TraceabilitySummary{TotalElements: total, TracedElements: traced}
	if total > 0 {
		coverage := float64(traced) / float64(total)
		fig.Traceability.Coverage = &coverage
	}

	if svg := filepath.Join(finalDir, ArtifactSVG); fileExists(svg) {
		fig.FinalSVGPath = &svg
	}
	return fig, warnings
}

// iterationNumbers lists the iter_<n> directories of a figure in numeric order.
func iterationNumbers(figureDir string) []int {
	entries, err := os.ReadDir(figureDir)
	if err != nil {
		return nil
	}
	var nums []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), iterationDirPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), iterationDirPrefix))
		if err != nil || n < 1 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func applyFilter(figures []FigureSummary, f InspectFilter) []FigureSummary {
	keep := func(pred func(FigureSummary) bool) {
		out := figures[:0:0]
		for _, fig := range figures {
			if pred(fig) {
				out = append(out, fig)
			}
		}
		figures = out
	}

	if f.FigureID != "" {
		keep(func(fig FigureSummary) bool { return fig.FigureID == f.FigureID })
	}
	if f.FailuresOnly {
		keep(func(fig FigureSummary) bool { return !fig.passed() })
	}
	if f.MinScore != nil {
		min := *f.MinScore
		keep(func(fig FigureSummary) bool { return fig.FinalScore != nil && *fig.FinalScore >= min })
	}
	if dim := strings.ToLower(strings.TrimSpace(f.FailedDimension)); dim != "" {
		keep(func(fig FigureSummary) bool {
			for _, d := range fig.FailedDimensions {
				if strings.ToLower(d) == dim {
					return true
				}
			}
			return false
		})
	}
	return figures
}

func aggregate(figures []FigureSummary) InspectAggregate {
	agg := InspectAggregate{
		TotalFigures:     len(figures),
		MaxIterationsHit: []string{},
	}
	var scoreSum, coverageSum float64
	var scores, coverages int
	for _, fig := range figures {
		if fig.passed() {
			agg.AcceptedCount++
		}
		if fig.FinalScore != nil {
			scoreSum += *fig.FinalScore
			scores++
		}
		if fig.Traceability.Coverage != nil {
			coverageSum += *fig.Traceability.Coverage
			coverages++
		}
		if fig.MaxIterationsHit {
			agg.MaxIterationsHit = append(agg.MaxIterationsHit, fig.FigureID)
		}
	}
	agg.FailedCount = agg.TotalFigures - agg.AcceptedCount
	if scores > 0 {
		avg := scoreSum / float64(scores)
		agg.AvgFinalScore = &avg
	}
	if coverages > 0 {
		avg := coverageSum / float64(coverages)
		agg.AvgTraceabilityCoverage = &avg
	}
	return agg
}
