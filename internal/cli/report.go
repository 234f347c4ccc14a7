package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export finalized figures as SVG and LaTeX",
		Long: `Copy every finalized figure of a run into an export directory with a
LaTeX snippet, captions and traceability. PNG output is not available
and is reported as a warning.

Example:
  paperfig export run-20250102-030405-a1b2c3
  paperfig export run-20250102-030405-a1b2c3 --output ./paper/figures`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := newApp(cmd, rootOpts, appTuning{})
			if err != nil {
				return f.Fail(err, nil)
			}
			defer a.Close()

			dir, err := a.orch.Export(cmd.Context(), args[0], output)
			if err != nil {
				return f.Fail(err, nil)
			}
			report, err := readExportReport(dir)
			if err != nil {
				return f.Fail(err, nil)
			}
			return f.Success(report, func(w io.Writer) {
				fmt.Fprintln(w, statusMark(true, fmt.Sprintf("Exported %d figure(s) to %s", len(report.Figures), report.OutputDir)))
				for _, warning := range report.Warnings {
					fmt.Fprintln(w, renderWarn(iconWarn+" "+warning))
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "export directory (default <run>/exports)")
	return cmd
}

func readExportReport(dir string) (*engine.ExportReport, error) {
	data, err := os.ReadFile(filepath.Join(dir, engine.FileExportReport))
	if err != nil {
		return nil, fmt.Errorf("read export report: %w", err)
	}
	var report engine.ExportReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode export report: %w", err)
	}
	return &report, nil
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "audit <run-id>",
		Short: "Re-run the reproducibility audit of a run",
		Long: `Check a run's provenance and artifact completeness and overwrite its
repro_audit.json. In hard mode a failed audit exits with code 1; the
run's other reports are left untouched.

Example:
  paperfig audit run-20250102-030405-a1b2c3 --mode hard`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := newApp(cmd, rootOpts, appTuning{})
			if err != nil {
				return f.Fail(err, nil)
			}
			defer a.Close()

			report, err := a.orch.Audit(cmd.Context(), args[0], ir.AuditMode(mode))
			if err != nil {
				return f.Fail(err, nil)
			}
			if err := f.Success(report, func(w io.Writer) { renderAudit(w, report) }); err != nil {
				return err
			}
			if report.Mode == ir.AuditHard && !report.Passed {
				return NewExitError(ExitFailure, "reproducibility audit failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "audit mode (soft|hard, default from config)")
	return cmd
}

func renderAudit(w io.Writer, r ir.ReproReport) {
	fmt.Fprintln(w, renderHeading(fmt.Sprintf("Audit %s (%s)", r.RunID, r.Mode)))
	for _, c := range r.Checks {
		label := c.CheckID
		if !c.Required {
			label += " (advisory)"
		}
		fmt.Fprintf(w, "  %s %s\n", statusMark(c.Passed, label), renderMuted(c.Message))
	}
	fmt.Fprintln(w, statusMark(r.Passed, r.Summary))
}

// CritiqueOptions holds flags for the critique-architecture command.
type CritiqueOptions struct {
	*RootOptions
	BlockSeverity string
	Enable        []string
	ListRules     bool
}

// NewCritiqueArchitectureCommand creates the critique-architecture command.
func NewCritiqueArchitectureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CritiqueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "critique-architecture [run-id]",
		Short: "Re-run the architecture critique of a run",
		Long: `Evaluate a run directory against the architecture rules and overwrite
its architecture_critique.json. A blocked report is printed but does not
change the exit code.

Example:
  paperfig critique-architecture --list-rules
  paperfig critique-architecture run-a --block-severity major --enable traceability_gap`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCritique(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.BlockSeverity, "block-severity", "", "severity that marks the report blocked (default from config)")
	cmd.Flags().StringSliceVar(&opts.Enable, "enable", nil, "enable only these rules (repeatable)")
	cmd.Flags().BoolVar(&opts.ListRules, "list-rules", false, "list the architecture rules and exit")
	return cmd
}

func runCritique(cmd *cobra.Command, opts *CritiqueOptions, args []string) error {
	f := opts.formatter(cmd)
	a, err := newApp(cmd, opts.RootOptions, appTuning{})
	if err != nil {
		return f.Fail(err, nil)
	}
	defer a.Close()

	if opts.ListRules {
		rules := a.orch.ListRules()
		return f.Success(rules, func(w io.Writer) {
			for _, r := range rules {
				fmt.Fprintf(w, "- %s [%s]: %s\n", r.ID, r.Severity, r.Description)
			}
		})
	}
	if len(args) == 0 {
		return f.Fail(engine.NewConfigurationError("run id is required unless --list-rules is given", nil), nil)
	}

	report, err := a.orch.CritiqueArchitecture(cmd.Context(), args[0], ir.Severity(opts.BlockSeverity), opts.Enable)
	if err != nil {
		return f.Fail(err, nil)
	}
	return f.Success(report, func(w io.Writer) {
		fmt.Fprintln(w, renderHeading("Architecture critique "+report.RunID))
		fmt.Fprintf(w, "  %s %s\n", renderMuted("summary:"), report.Summary)
		for _, finding := range report.Findings {
			fmt.Fprintf(w, "  - [%s] %s: %s\n", finding.Severity, finding.Title, finding.Description)
		}
		fmt.Fprintln(w, statusMark(!report.Blocked, fmt.Sprintf("blocked at %s: %t", report.BlockSeverity, report.Blocked)))
	})
}
