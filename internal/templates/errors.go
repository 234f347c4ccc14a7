package templates

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Catalog error codes (T100-T199).
const (
	ErrNotMapping      = "T101" // template file is not a YAML mapping
	ErrMissingField    = "T102" // a required field is absent
	ErrDecode          = "T103" // a field has the wrong shape
	ErrDuplicateID     = "T104" // two templates share an id
	ErrEmptyPack       = "T105" // no template belongs to the pack
	ErrNoTemplateFiles = "T106" // the directory holds no *.yaml files
	ErrSchema          = "T110" // schema violation reported by lint
)

// ValidationError is one problem found in a template file or catalog.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, loc, e.Field, e.Message)
}

// SchemaError is a CUE schema failure with its source position.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// schemaErrors flattens a CUE error into one SchemaError per underlying
// failure.
func schemaErrors(err error) []*SchemaError {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return []*SchemaError{{Field: "cue", Message: err.Error()}}
	}
	out := make([]*SchemaError, 0, len(errs))
	for _, e := range errs {
		format, args := e.Msg()
		se := &SchemaError{Field: fieldPath(e.Path()), Message: fmt.Sprintf(format, args...)}
		if positions := errors.Positions(e); len(positions) > 0 {
			se.Pos = positions[0]
		}
		out = append(out, se)
	}
	return out
}

func fieldPath(path []string) string {
	if len(path) > 0 && path[0] == "#FlowTemplate" {
		path = path[1:]
	}
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, ".")
}
