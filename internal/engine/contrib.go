package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/paperfig/internal/ir"
)

// contribLog appends timestamped lines to contrib.log when contributor mode
// is on. A nil *contribLog discards everything.
type contribLog struct {
	mu    sync.Mutex
	path  string
	clock Clock
}

func (o *Orchestrator) newContribLog(runDir string) *contribLog {
	if !o.cfg.Contrib {
		return nil
	}
	return &contribLog{path: filepath.Join(runDir, FileContribLog), clock: o.clock}
}

func (c *contribLog) logf(format string, args ...any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] %s\n", formatTimestamp(c.clock.Now()), fmt.Sprintf(format, args...))
}

func writePlannerNotes(runDir string, plan []ir.FigurePlan) error {
	lines := []string{
		"# Planner Decision Notes",
		"",
		"Contributor mode is enabled for this run. Figure plan rationale:",
		"",
	}
	for _, p := range plan {
		lines = append(lines, fmt.Sprintf("- `%s` (`%s` via `%s`): %s", p.FigureID, p.Kind, p.TemplateID, p.Justification))
	}
	return os.WriteFile(filepath.Join(runDir, FilePlannerNotes), []byte(strings.Join(lines, "\n")), 0o644)
}

func writeCriticNotes(iterDir string, r ir.CritiqueReport) error {
	failed := "none"
	if len(r.FailedDimensions) > 0 {
		failed = strings.Join(r.FailedDimensions, ", ")
	}
	lines := []string{
		"# Critic Notes",
		"",
		fmt.Sprintf("- Figure ID: `%s`", r.FigureID),
		fmt.Sprintf("- Score: `%v` (threshold `%v`)", r.Score, r.Threshold),
		fmt.Sprintf("- Passed: `%t`", r.Passed),
		fmt.Sprintf("- Failed dimensions: %s", failed),
		"",
		"## Issues",
	}
	lines = append(lines, bulletsOrNone(r.Issues)...)
	lines = append(lines, "", "## Recommendations")
	lines = append(lines, bulletsOrNone(r.Recommendations)...)
	return os.WriteFile(filepath.Join(iterDir, FileCriticNotes), []byte(strings.Join(lines, "\n")), 0o644)
}

func bulletsOrNone(items []string) []string {
	if len(items) == 0 {
		return []string{"- none"}
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = "- " + item
	}
	return out
}

func (o *Orchestrator) writeContributingNotes(runID, runDir string) error {
	summary, err := o.buildInspect(runID, runDir, InspectFilter{})
	if err != nil {
		return err
	}
	agg := summary.Aggregate
	lines := []string{
		"# CONTRIBUTING NOTES",
		"",
		"This run was generated with `--contrib` mode.",
		"",
		"## Summary",
		fmt.Sprintf("- Accepted figures: %d / %d", agg.AcceptedCount, agg.TotalFigures),
		fmt.Sprintf("- Avg score: %s", formatOptional(agg.AvgFinalScore)),
		fmt.Sprintf("- Avg traceability coverage: %s", formatOptional(agg.AvgTraceabilityCoverage)),
		"",
		"## How To Improve",
		"- Improve flow templates to better match extracted sections.",
		"- Review `figures/<figure_id>/iter_*/critic_notes.md` for failed dimensions.",
		"- Run `paperfig templates lint` and `paperfig docs check` before opening a PR.",
	}
	var failed []FigureSummary
	for _, f := range summary.Figures {
		if !f.passed() {
			failed = append(failed, f)
		}
	}
	if len(failed) > 0 {
		lines = append(lines, "", "## Failed Figures")
		for _, f := range failed {
			lines = append(lines, fmt.Sprintf("- `%s` score=%s failed_dimensions=%v",
				f.FigureID, formatOptional(f.FinalScore), f.FailedDimensions))
		}
	}
	return os.WriteFile(filepath.Join(runDir, FileContributing), []byte(strings.Join(lines, "\n")), 0o644)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}
