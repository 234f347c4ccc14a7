// Package templates loads, validates and selects flow templates.
//
// A flow template describes one kind of figure the planner may request:
// which paper sections it needs, which keywords trigger it, and what the
// rendered figure must trace back to. Templates are YAML files grouped
// into packs; a catalog is every template of one pack.
package templates

import (
	"embed"
	"io/fs"
)

// DefaultPack is the pack a template belongs to when it names none.
const DefaultPack = "expanded_v1"

// TriggerRule matches when the named section mentions any keyword.
// An empty section or keyword list always matches.
type TriggerRule struct {
	Section  string   `yaml:"section" json:"section"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// FlowTemplate is one parsed template file.
type FlowTemplate struct {
	ID                       string         `yaml:"id" json:"id"`
	Pack                     string         `yaml:"pack" json:"pack"`
	Title                    string         `yaml:"title" json:"title"`
	Kind                     string         `yaml:"kind" json:"kind"`
	OrderHint                int            `yaml:"order_hint" json:"order_hint"`
	RequiredSections         []string       `yaml:"required_sections" json:"required_sections"`
	TriggerRules             []TriggerRule  `yaml:"trigger_rules" json:"trigger_rules"`
	ElementBlueprint         map[string]any `yaml:"element_blueprint" json:"element_blueprint"`
	CaptionStyle             string         `yaml:"caption_style" json:"caption_style"`
	TraceabilityRequirements map[string]any `yaml:"traceability_requirements" json:"traceability_requirements"`
	CritiqueFocus            []string       `yaml:"critique_focus" json:"critique_focus"`

	// Path is the file the template was read from.
	Path string `yaml:"-" json:"path"`
}

// Catalog is the ordered set of templates of one pack.
type Catalog struct {
	Pack      string         `json:"pack"`
	Templates []FlowTemplate `json:"templates"`
}

// IDs returns the template ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Templates))
	for _, t := range c.Templates {
		ids = append(ids, t.ID)
	}
	return ids
}

//go:embed flows/*.yaml
var builtinFlows embed.FS

// Builtin returns the templates shipped with the binary.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtinFlows, "flows")
	if err != nil {
		panic(err)
	}
	return sub
}
