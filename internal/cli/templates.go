package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/paperfig/internal/templates"
)

// TemplateOptions holds flags shared by the templates subcommands.
type TemplateOptions struct {
	*RootOptions
	Dir  string
	Pack string
}

// source resolves the template source: --dir, then templates.template_dir.
func (o *TemplateOptions) source() (templates.Source, string, error) {
	s, err := loadSettings(o.RootOptions)
	if err != nil {
		return templates.Source{}, "", err
	}
	dir := s.Templates.TemplateDir
	if o.Dir != "" {
		dir = o.Dir
	}
	pack := s.Templates.ActivePack
	if o.Pack != "" {
		pack = o.Pack
	}
	return templates.NewSource(dir), pack, nil
}

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TemplateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List, validate and lint flow templates",
	}
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "template directory (default: built-in templates)")
	cmd.PersistentFlags().StringVar(&opts.Pack, "pack", "", "template pack (default templates.active_pack)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the templates of a pack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesList(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check catalog rules such as unique template ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesCheck(cmd, opts, templates.Source.Validate)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "lint",
		Short: "Check every template file against the template schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesCheck(cmd, opts, templates.Source.Lint)
		},
	})
	return cmd
}

func runTemplatesList(cmd *cobra.Command, opts *TemplateOptions) error {
	f := opts.formatter(cmd)
	src, pack, err := opts.source()
	if err != nil {
		return f.Fail(err, nil)
	}
	catalog, err := src.Catalog(pack)
	if err != nil {
		return f.Fail(err, nil)
	}
	return f.Success(catalog, func(w io.Writer) {
		fmt.Fprintf(w, "Template pack: %s %s\n", catalog.Pack, renderMuted("("+src.Name()+")"))
		for _, t := range catalog.Templates {
			fmt.Fprintf(w, "- %s: %s (%s)\n", t.ID, t.Title, t.Kind)
		}
	})
}

// TemplateCheckResult is the payload of templates validate and lint.
type TemplateCheckResult struct {
	Source string                      `json:"source"`
	Pack   string                      `json:"pack"`
	Valid  bool                        `json:"valid"`
	Errors []templates.ValidationError `json:"errors,omitempty"`
}

func runTemplatesCheck(cmd *cobra.Command, opts *TemplateOptions, check func(templates.Source, string) ([]templates.ValidationError, error)) error {
	f := opts.formatter(cmd)
	src, pack, err := opts.source()
	if err != nil {
		return f.Fail(err, nil)
	}
	issues, err := check(src, pack)
	if err != nil {
		return f.Fail(err, nil)
	}

	result := TemplateCheckResult{Source: src.Name(), Pack: pack, Valid: len(issues) == 0, Errors: issues}
	if !result.Valid {
		if err := f.Error(ErrCodeLint, fmt.Sprintf("%d template issue(s) in %s", len(issues), src.Name()), issues); err != nil {
			return err
		}
		if f.Format != "json" {
			for _, issue := range issues {
				fmt.Fprintf(f.Writer, "  %s\n", renderFail(issue.Error()))
			}
		}
		return NewExitError(ExitFailure, "template check failed")
	}
	return f.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, statusMark(true, fmt.Sprintf("templates in %s are valid", src.Name())))
	})
}
