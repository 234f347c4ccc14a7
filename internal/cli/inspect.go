package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/paperfig/internal/engine"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	FigureID        string
	FailuresOnly    bool
	MinScore        float64
	FailedDimension string
	Output          string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <run-id>",
		Short: "Summarize a run from its files on disk",
		Long: `Recompute the per-figure and aggregate summary of a run. Filters narrow
the printed summary; the inspect.json snapshot in the run is never
rewritten by a filtered inspect.

Example:
  paperfig inspect run-20250102-030405-a1b2c3 --failures-only
  paperfig inspect run-20250102-030405-a1b2c3 --min-score 0.8 --output summary.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.FigureID, "figure-id", "", "only this figure")
	cmd.Flags().BoolVar(&opts.FailuresOnly, "failures-only", false, "only figures whose final critique failed")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "only figures with a final score at or above this value")
	cmd.Flags().StringVar(&opts.FailedDimension, "failed-dimension", "", "only figures that failed this dimension")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "also write the summary JSON to this file")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions, runID string) error {
	f := opts.formatter(cmd)

	a, err := newApp(cmd, opts.RootOptions, appTuning{})
	if err != nil {
		return f.Fail(err, nil)
	}
	defer a.Close()

	filter := engine.InspectFilter{
		FigureID:        opts.FigureID,
		FailuresOnly:    opts.FailuresOnly,
		FailedDimension: opts.FailedDimension,
	}
	if cmd.Flags().Changed("min-score") {
		filter.MinScore = &opts.MinScore
	}

	summary, err := a.orch.Inspect(cmd.Context(), runID, filter)
	if err != nil {
		return f.Fail(err, nil)
	}

	if opts.Output != "" {
		if err := writeJSON(opts.Output, summary); err != nil {
			return f.Fail(err, nil)
		}
		f.VerboseLog("Wrote inspect summary to %s", opts.Output)
	}

	return f.Success(summary, func(w io.Writer) { renderInspect(w, summary) })
}

func renderInspect(w io.Writer, s *engine.InspectSummary) {
	fmt.Fprintln(w, renderHeading("Run "+s.RunID))
	if s.Metadata != nil {
		fmt.Fprintf(w, "  %s %s\n", renderMuted("source:"), s.Metadata.SourcePath)
	}
	agg := s.Aggregate
	fmt.Fprintf(w, "  %s %d planned, %d shown, %d accepted, %d failed\n", renderMuted("figures:"),
		s.PlanCount, agg.TotalFigures, agg.AcceptedCount, agg.FailedCount)
	fmt.Fprintf(w, "  %s avg score %s, avg coverage %s\n", renderMuted("quality:"),
		scoreText(agg.AvgFinalScore), scoreText(agg.AvgTraceabilityCoverage))
	if len(agg.MaxIterationsHit) > 0 {
		fmt.Fprintf(w, "  %s %s\n", renderWarn(iconWarn+" max iterations hit:"), strings.Join(agg.MaxIterationsHit, ", "))
	}

	for _, fig := range s.Figures {
		fmt.Fprintf(w, "\n%s %s\n", statusMark(fig.Accepted, fig.FigureID), fig.Title)
		fmt.Fprintf(w, "  kind %s, template %s, %d iteration(s), score %s\n",
			fig.Kind, fig.TemplateID, fig.IterationsAttempted, scoreText(fig.FinalScore))
		if len(fig.FailedDimensions) > 0 {
			fmt.Fprintf(w, "  failed: %s\n", strings.Join(fig.FailedDimensions, ", "))
		}
		for _, issue := range fig.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}

	for _, warning := range s.Warnings {
		fmt.Fprintln(w, renderWarn(iconWarn+" "+warning))
	}
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "diff <run-1> <run-2>",
		Short: "Compare two runs",
		Long: `Compare the aggregate metrics, figures and top-level artifacts of two
runs and write diff.json. Neither run is modified.

Example:
  paperfig diff run-a run-b
  paperfig diff run-a run-b --output ./diffs/a-vs-b`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := newApp(cmd, rootOpts, appTuning{})
			if err != nil {
				return f.Fail(err, nil)
			}
			defer a.Close()

			report, err := a.orch.Diff(cmd.Context(), args[0], args[1], output)
			if err != nil {
				return f.Fail(err, nil)
			}
			return f.Success(report, func(w io.Writer) { renderDiff(w, report) })
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for diff.json (default <run-root>/diffs/...)")
	return cmd
}

func renderDiff(w io.Writer, r *engine.DiffReport) {
	fmt.Fprintln(w, renderHeading(fmt.Sprintf("Diff %s vs %s", r.RunID1, r.RunID2)))

	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		m := r.Metrics[name]
		fmt.Fprintf(w, "  %-28s %s -> %s (delta %s)\n", name, scoreText(m.Run1), scoreText(m.Run2), scoreText(m.Delta))
	}

	if len(r.ChangedFigures) == 0 {
		fmt.Fprintln(w, statusMark(true, "no figure changes"))
	}
	for _, c := range r.ChangedFigures {
		fmt.Fprintf(w, "  %s %s\n", renderWarn(iconWarn+" "+c.FigureID), c.Change)
	}
	if len(r.ChangedArtifacts) > 0 {
		fmt.Fprintf(w, "  %s %s\n", renderMuted("changed artifacts:"), strings.Join(r.ChangedArtifacts, ", "))
	}
	fmt.Fprintf(w, "  %s %s\n", renderMuted("written to:"), filepath.Join(r.DiffDir, engine.FileDiff))
}

// writeJSON writes v as indented JSON, creating parent directories.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
