package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewDocsCommand creates the docs command group.
func NewDocsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Check or regenerate managed documentation",
	}
	cmd.AddCommand(newDocsSubcommand(rootOpts, "check", true,
		"Report documentation drift without writing; exits 1 on drift"))
	cmd.AddCommand(newDocsSubcommand(rootOpts, "regenerate", false,
		"Re-render managed documentation blocks in place"))
	return cmd
}

func newDocsSubcommand(rootOpts *RootOptions, name string, checkOnly bool, short string) *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := newApp(cmd, rootOpts, appTuning{})
			if err != nil {
				return f.Fail(err, nil)
			}
			defer a.Close()

			report, err := a.orch.DocsCheck(cmd.Context(), checkOnly)
			if err != nil {
				return f.Fail(err, nil)
			}
			if reportPath != "" {
				if err := writeJSON(reportPath, report); err != nil {
					return f.Fail(err, nil)
				}
			}

			err = f.Success(report, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", renderMuted("manifest:"), report.ManifestPath)
				for _, doc := range report.Documents {
					label := doc.Path
					if doc.Written {
						label += " (written)"
					}
					fmt.Fprintln(w, statusMark(!doc.Drift, label))
				}
				for _, warning := range report.Warnings {
					fmt.Fprintln(w, renderWarn(iconWarn+" "+warning))
				}
				fmt.Fprintf(w, "Checked documents: %d\n", len(report.Documents))
				fmt.Fprintln(w, statusMark(!report.DriftDetected, fmt.Sprintf("Drift detected: %t", report.DriftDetected)))
			})
			if err != nil {
				return err
			}
			if checkOnly && report.DriftDetected {
				return NewExitError(ExitFailure, "documentation drift detected")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report-path", "", "also write the drift report JSON to this file")
	return cmd
}
