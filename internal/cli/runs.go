package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Status string
	Limit  int
	RunID  string
}

// RunsResult is the payload of the runs command.
type RunsResult struct {
	Runs    []store.RunEntry `json:"runs"`
	Reruns  []string         `json:"reruns,omitempty"`
	IndexAt string           `json:"index"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the run index",
		Long: `List runs from the SQLite run index, newest first. The run directories
remain the source of truth; the index only records lifecycle, status and
rerun lineage.

Example:
  paperfig runs --status failed --limit 10
  paperfig runs --run-id run-20250102-030405-a1b2c3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (running|succeeded|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of runs (0 = all)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "show one run and the reruns made from it")
	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	f := opts.formatter(cmd)
	switch opts.Status {
	case "", engine.RunStatusRunning, engine.RunStatusSucceeded, engine.RunStatusFailed:
	default:
		return f.Fail(engine.NewConfigurationError(fmt.Sprintf("unknown status %q", opts.Status), nil), nil)
	}

	settings, err := loadSettings(opts.RootOptions)
	if err != nil {
		return f.Fail(err, nil)
	}
	if settings.Index.Disabled {
		return f.Fail(engine.NewConfigurationError("run index is disabled (index.disabled)", nil), nil)
	}
	st, err := openIndex(settings.Index.Path, settings.Run.Root)
	if err != nil {
		return f.Fail(err, nil)
	}
	defer st.Close()

	result := RunsResult{Runs: []store.RunEntry{}, IndexAt: settings.Index.Path}
	if result.IndexAt == "" {
		result.IndexAt = filepath.Join(settings.Run.Root, IndexFile)
	}

	if opts.RunID != "" {
		entry, err := st.GetRun(cmd.Context(), opts.RunID)
		if errors.Is(err, store.ErrRunNotIndexed) {
			return f.Fail(engine.NewNotFoundError(opts.RunID, "run not found in index: "+opts.RunID), nil)
		}
		if err != nil {
			return f.Fail(err, nil)
		}
		result.Runs = append(result.Runs, entry)
		if result.Reruns, err = st.Reruns(cmd.Context(), opts.RunID); err != nil {
			return f.Fail(err, nil)
		}
	} else {
		runs, err := st.ListRuns(cmd.Context(), store.ListOptions{Status: opts.Status, Limit: opts.Limit})
		if err != nil {
			return f.Fail(err, nil)
		}
		result.Runs = append(result.Runs, runs...)
	}

	return f.Success(result, func(w io.Writer) { renderRuns(w, result) })
}

func renderRuns(w io.Writer, r RunsResult) {
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, renderMuted("no runs recorded in "+r.IndexAt))
		return
	}
	for _, run := range r.Runs {
		var mark string
		switch run.Status {
		case engine.RunStatusSucceeded:
			mark = renderPass(iconPass + " " + run.RunID)
		case engine.RunStatusFailed:
			mark = renderFail(iconFail + " " + run.RunID)
		default:
			mark = renderWarn(iconWarn + " " + run.RunID)
		}
		fmt.Fprintf(w, "%s %s %d/%d accepted %s\n", mark, run.CreatedAt, run.AcceptedCount, run.TotalFigures, renderMuted(run.SourcePath))
		if run.RerunOf != "" {
			fmt.Fprintf(w, "    %s %s\n", renderMuted("rerun of"), run.RerunOf)
		}
		if run.Error != "" {
			fmt.Fprintf(w, "    %s\n", renderFail(run.Error))
		}
	}
	for _, id := range r.Reruns {
		fmt.Fprintf(w, "  %s %s\n", renderMuted("rerun:"), id)
	}
}
