package templates

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// requiredFields must be present in every template file.
var requiredFields = []string{
	"caption_style",
	"critique_focus",
	"element_blueprint",
	"id",
	"kind",
	"order_hint",
	"required_sections",
	"title",
	"trigger_rules",
	"traceability_requirements",
}

// templateFiles lists the *.yaml files at the top of fsys in name order.
func templateFiles(fsys fs.FS) ([]string, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// readMapping parses a template file into its root mapping node.
func readMapping(fsys fs.FS, name string) (*yaml.Node, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ValidationError{Path: name, Field: "<root>", Message: err.Error(), Code: ErrDecode}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, ValidationError{Path: name, Field: "<root>", Message: "template must be a mapping", Code: ErrNotMapping}
	}
	return doc.Content[0], nil
}

// mappingValue returns the value node for key, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func packOf(m *yaml.Node) string {
	if v := mappingValue(m, "pack"); v != nil && v.Value != "" {
		return v.Value
	}
	return DefaultPack
}

// LoadCatalog reads every template of pack from the top level of fsys.
// Files of other packs are skipped. A file of the pack that misses a
// required field fails the whole load.
func LoadCatalog(fsys fs.FS, pack string) (*Catalog, error) {
	if pack == "" {
		pack = DefaultPack
	}
	names, err := templateFiles(fsys)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	catalog := &Catalog{Pack: pack, Templates: []FlowTemplate{}}
	for _, name := range names {
		root, err := readMapping(fsys, name)
		if err != nil {
			return nil, err
		}
		if packOf(root) != pack {
			continue
		}

		var missing []string
		for _, field := range requiredFields {
			if mappingValue(root, field) == nil {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return nil, ValidationError{
				Path:    name,
				Field:   strings.Join(missing, ", "),
				Message: "missing required fields",
				Code:    ErrMissingField,
				Line:    root.Line,
			}
		}

		var tpl FlowTemplate
		if err := root.Decode(&tpl); err != nil {
			return nil, ValidationError{Path: name, Field: "<root>", Message: err.Error(), Code: ErrDecode, Line: root.Line}
		}
		if tpl.Pack == "" {
			tpl.Pack = DefaultPack
		}
		tpl.Path = path.Clean(name)
		catalog.Templates = append(catalog.Templates, tpl)
	}
	return catalog, nil
}

// Source resolves catalogs from a template directory. An empty Dir uses
// the built-in templates.
type Source struct {
	Dir string
}

// NewSource returns a Source reading from dir.
func NewSource(dir string) Source {
	return Source{Dir: dir}
}

// FS returns the file system holding the template files.
func (s Source) FS() (fs.FS, error) {
	if s.Dir == "" {
		return Builtin(), nil
	}
	info, err := os.Stat(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("template directory not found: %s: %w", s.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template path is not a directory: %s", s.Dir)
	}
	return os.DirFS(s.Dir), nil
}

// Name describes where templates come from, for messages.
func (s Source) Name() string {
	if s.Dir == "" {
		return "<builtin>"
	}
	return s.Dir
}

// Catalog loads the catalog of pack.
func (s Source) Catalog(pack string) (*Catalog, error) {
	fsys, err := s.FS()
	if err != nil {
		return nil, err
	}
	return LoadCatalog(fsys, pack)
}

// TemplateIDs returns the ids of pack's templates in catalog order.
func (s Source) TemplateIDs(pack string) ([]string, error) {
	c, err := s.Catalog(pack)
	if err != nil {
		return nil, err
	}
	return c.IDs(), nil
}
