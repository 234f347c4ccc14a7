package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

// Lint checks every template file of pack against the flow template
// schema. An empty pack lints every file. Lint never stops at the first
// problem; a non-nil error means the schema itself could not be built.
func Lint(fsys fs.FS, pack string) ([]ValidationError, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("flow_template.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#FlowTemplate"))

	names, err := templateFiles(fsys)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var issues []ValidationError
	linted := 0
	for _, name := range names {
		root, err := readMapping(fsys, name)
		if err != nil {
			var ve ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			issues = append(issues, ve)
			continue
		}
		if pack != "" && packOf(root) != pack {
			continue
		}
		linted++
		issues = append(issues, lintFile(ctx, def, fsys, name)...)
	}

	if linted == 0 {
		issues = append(issues, ValidationError{
			Field:   "<root>",
			Message: "no template files were found",
			Code:    ErrNoTemplateFiles,
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		return issues[i].Line < issues[j].Line
	})
	return issues, nil
}

func lintFile(ctx *cue.Context, def cue.Value, fsys fs.FS, name string) []ValidationError {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return []ValidationError{{Path: name, Field: "<root>", Message: err.Error(), Code: ErrDecode}}
	}
	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return []ValidationError{{Path: name, Field: "<root>", Message: err.Error(), Code: ErrDecode}}
	}
	v := ctx.BuildFile(file)
	if err := v.Err(); err != nil {
		return toValidationErrors(name, err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return toValidationErrors(name, err)
	}
	return nil
}

func toValidationErrors(name string, err error) []ValidationError {
	var out []ValidationError
	for _, se := range schemaErrors(err) {
		ve := ValidationError{Path: name, Field: se.Field, Message: se.Message, Code: ErrSchema}
		if se.Pos.IsValid() && se.Pos.Filename() == name {
			ve.Line = se.Pos.Line()
		}
		out = append(out, ve)
	}
	return out
}

// Lint lints the templates of pack in the source directory.
func (s Source) Lint(pack string) ([]ValidationError, error) {
	fsys, err := s.FS()
	if err != nil {
		return nil, err
	}
	return Lint(fsys, pack)
}
