package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/paperfig/internal/config"
	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// runFlags are the per-run parameters shared by generate and rerun.
type runFlags struct {
	maxIterations      int
	qualityThreshold   float64
	dimensionThreshold float64
	templatePack       string
	archCritique       string
	blockSeverity      string
	auditMode          string
	contrib            bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVar(&f.maxIterations, "max-iterations", engine.DefaultMaxIterations, "maximum generate/critique iterations per figure")
	fl.Float64Var(&f.qualityThreshold, "quality-threshold", engine.DefaultQualityThreshold, "overall critique score needed to accept a figure")
	fl.Float64Var(&f.dimensionThreshold, "dimension-threshold", engine.DefaultDimensionThreshold, "per-dimension score below which a dimension fails")
	fl.StringVar(&f.templatePack, "template-pack", engine.DefaultTemplatePack, "flow template pack")
	fl.StringVar(&f.archCritique, "arch-critique", ir.ArchCritiqueInline, "architecture critique during generate (inline|off)")
	fl.StringVar(&f.blockSeverity, "block-severity", string(ir.SeverityCritical), "finding severity that blocks the run (info|minor|major|critical)")
	fl.StringVar(&f.auditMode, "audit-mode", string(ir.AuditSoft), "reproducibility audit mode (soft|hard)")
	fl.BoolVar(&f.contrib, "contrib", false, "write contributor notes into the run directory")
}

// applySettings copies explicitly set flags over the loaded settings.
func (f *runFlags) applySettings(cmd *cobra.Command, s *config.Settings) {
	changed := cmd.Flags().Changed
	if changed("max-iterations") {
		s.Run.MaxIterations = f.maxIterations
	}
	if changed("quality-threshold") {
		s.Run.QualityThreshold = f.qualityThreshold
	}
	if changed("dimension-threshold") {
		s.Run.DimensionThreshold = f.dimensionThreshold
	}
	if changed("template-pack") {
		s.Templates.ActivePack = f.templatePack
	}
	if changed("arch-critique") {
		s.ArchitectureCritique.InlineOnGenerate = f.archCritique == ir.ArchCritiqueInline
	}
	if changed("block-severity") {
		s.ArchitectureCritique.BlockSeverity = f.blockSeverity
	}
	if changed("audit-mode") {
		s.Reproducibility.Mode = f.auditMode
	}
}

// overrides converts explicitly set flags into rerun overrides.
func (f *runFlags) overrides(cmd *cobra.Command) (engine.RerunOverrides, error) {
	var ov engine.RerunOverrides
	changed := cmd.Flags().Changed
	if changed("max-iterations") {
		ov.MaxIterations = &f.maxIterations
	}
	if changed("quality-threshold") {
		ov.QualityThreshold = &f.qualityThreshold
	}
	if changed("dimension-threshold") {
		ov.DimensionThreshold = &f.dimensionThreshold
	}
	if changed("template-pack") {
		ov.TemplatePack = &f.templatePack
	}
	if changed("arch-critique") {
		ov.ArchCritiqueMode = &f.archCritique
	}
	if changed("block-severity") {
		sev, err := ir.ParseSeverity(f.blockSeverity)
		if err != nil {
			return ov, engine.NewConfigurationError("--block-severity", err)
		}
		ov.ArchCritiqueBlockSeverity = &sev
	}
	if changed("audit-mode") {
		mode, err := ir.ParseAuditMode(f.auditMode)
		if err != nil {
			return ov, engine.NewConfigurationError("--audit-mode", err)
		}
		ov.ReproAuditMode = &mode
	}
	return ov, nil
}

func (f *runFlags) validateArchCritique(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("arch-critique") {
		return nil
	}
	switch f.archCritique {
	case ir.ArchCritiqueInline, ir.ArchCritiqueOff:
		return nil
	}
	return engine.NewConfigurationError(fmt.Sprintf("--arch-critique must be inline or off, got %q", f.archCritique), nil)
}

// RunResult is the payload printed after generate and rerun.
type RunResult struct {
	RunID     string                  `json:"run_id"`
	RunDir    string                  `json:"run_dir"`
	RerunOf   string                  `json:"rerun_of,omitempty"`
	Aggregate engine.InspectAggregate `json:"aggregate"`
	Figures   []engine.FigureSummary  `json:"figures"`
}

func renderRunResult(r RunResult) func(io.Writer) {
	return func(w io.Writer) {
		label := "Run " + r.RunID + " succeeded"
		if r.RerunOf != "" {
			label = fmt.Sprintf("Rerun %s of %s succeeded", r.RunID, r.RerunOf)
		}
		fmt.Fprintln(w, statusMark(true, label))
		fmt.Fprintf(w, "  %s %s\n", renderMuted("run dir:"), r.RunDir)
		fmt.Fprintf(w, "  %s %d/%d accepted, avg score %s\n", renderMuted("figures:"),
			r.Aggregate.AcceptedCount, r.Aggregate.TotalFigures, scoreText(r.Aggregate.AvgFinalScore))
		for _, f := range r.Figures {
			fmt.Fprintf(w, "  %s %s (%s) score %s after %d iteration(s)\n",
				statusMark(f.Accepted, f.FigureID), f.Title, f.Kind, scoreText(f.FinalScore), f.IterationsAttempted)
		}
	}
}

// reportRun prints the inspect summary of a finished run.
func reportRun(cmd *cobra.Command, f *OutputFormatter, a *app, runID, rerunOf string) error {
	summary, err := a.orch.Inspect(cmd.Context(), runID, engine.InspectFilter{})
	if err != nil {
		return f.Fail(err, nil)
	}
	result := RunResult{
		RunID:     runID,
		RunDir:    summary.RunDir,
		RerunOf:   rerunOf,
		Aggregate: summary.Aggregate,
		Figures:   summary.Figures,
	}
	return f.Success(result, renderRunResult(result))
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "generate <paper>",
		Short: "Generate figures for a paper",
		Long: `Parse a Markdown or text paper, plan its figures, run the
generate/critique loop for each figure and finalize the run.

A run that trips the docs drift, architecture critique or hard
reproducibility gate exits with code 1.

Example:
  paperfig generate paper.md
  paperfig generate paper.md --max-iterations 5 --audit-mode hard`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, rootOpts, flags, args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *RootOptions, flags *runFlags, paperPath string) error {
	f := opts.formatter(cmd)
	if err := flags.validateArchCritique(cmd); err != nil {
		return f.Fail(err, nil)
	}

	a, err := newApp(cmd, opts, appTuning{
		settings: func(s *config.Settings) { flags.applySettings(cmd, s) },
		engine:   func(c *engine.Config) { c.Contrib = flags.contrib },
	})
	if err != nil {
		return f.Fail(err, nil)
	}
	defer a.Close()

	f.VerboseLog("Generating figures for %s", paperPath)
	runID, err := a.orch.Generate(cmd.Context(), paperPath)
	if err != nil {
		return f.Fail(err, nil)
	}
	return reportRun(cmd, f, a, runID, "")
}

// NewRerunCommand creates the rerun command.
func NewRerunCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "rerun <run-id>",
		Short: "Replay a run from its persisted plan",
		Long: `Start a new run from the plan.json of an earlier run. The planner is
not consulted; the recorded run parameters are reused unless a flag
overrides them.

Example:
  paperfig rerun run-20250102-030405-a1b2c3
  paperfig rerun run-20250102-030405-a1b2c3 --max-iterations 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRerun(cmd, rootOpts, flags, args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

func runRerun(cmd *cobra.Command, opts *RootOptions, flags *runFlags, sourceRunID string) error {
	f := opts.formatter(cmd)
	if err := flags.validateArchCritique(cmd); err != nil {
		return f.Fail(err, nil)
	}
	ov, err := flags.overrides(cmd)
	if err != nil {
		return f.Fail(err, nil)
	}

	a, err := newApp(cmd, opts, appTuning{
		engine: func(c *engine.Config) { c.Contrib = flags.contrib },
	})
	if err != nil {
		return f.Fail(err, nil)
	}
	defer a.Close()

	runID, err := a.orch.Rerun(cmd.Context(), sourceRunID, ov)
	if err != nil {
		return f.Fail(err, nil)
	}
	return reportRun(cmd, f, a, runID, sourceRunID)
}
