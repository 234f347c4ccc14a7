// Package docsgen keeps managed documentation in sync with the code.
//
// A YAML manifest lists the managed documents and the auto-generated
// blocks they embed. Generated and hybrid documents have every
// <!-- AUTO-GEN:START id --> ... <!-- AUTO-GEN:END id --> block re-rendered;
// any difference from the file on disk is drift.
package docsgen

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Document modes.
const (
	ModeGenerated = "generated"
	ModeHybrid    = "hybrid"
	ModeValidated = "validated"
)

var validModes = map[string]bool{ModeGenerated: true, ModeHybrid: true, ModeValidated: true}

// DocEntry is one managed document.
type DocEntry struct {
	Path             string
	Mode             string
	RequiredSections []string
}

// Rendered reports whether the document's auto blocks are re-rendered.
func (d DocEntry) Rendered() bool {
	return d.Mode == ModeGenerated || d.Mode == ModeHybrid
}

// Manifest is the parsed docs manifest. AutoBlocks keeps block configs
// loosely typed; each block type reads the keys it needs.
type Manifest struct {
	Documents  []DocEntry
	AutoBlocks map[string]map[string]any
}

// ManifestError reports a malformed manifest.
type ManifestError struct {
	Path    string
	Message string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("docs manifest %s: %s", e.Path, e.Message)
}

// LoadManifest reads and validates the manifest at path. A missing file
// returns an error satisfying errors.Is(err, fs.ErrNotExist).
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(path, data)
}

// ParseManifest validates manifest bytes read from path.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ManifestError{Path: path, Message: err.Error()}
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return nil, &ManifestError{Path: path, Message: "manifest must contain a mapping"}
	}

	m := &Manifest{Documents: []DocEntry{}, AutoBlocks: map[string]map[string]any{}}

	docs, ok := top["documents"].([]any)
	if !ok && top["documents"] != nil {
		return nil, &ManifestError{Path: path, Message: "'documents' must be a list"}
	}
	for i, item := range docs {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, &ManifestError{Path: path, Message: fmt.Sprintf("documents[%d] must be a mapping", i)}
		}
		mode := cast.ToString(entry["mode"])
		if mode == "" {
			mode = ModeValidated
		}
		if !validModes[mode] {
			return nil, &ManifestError{Path: path, Message: fmt.Sprintf(
				"invalid document mode %q; expected one of generated, hybrid, validated", mode)}
		}
		var required []string
		if r := entry["required_sections"]; r != nil {
			list, ok := r.([]any)
			if !ok {
				return nil, &ManifestError{Path: path, Message: fmt.Sprintf("documents[%d].required_sections must be a list", i)}
			}
			required = cast.ToStringSlice(list)
		}
		m.Documents = append(m.Documents, DocEntry{
			Path:             cast.ToString(entry["path"]),
			Mode:             mode,
			RequiredSections: required,
		})
	}

	if blocks := top["auto_blocks"]; blocks != nil {
		bm, ok := blocks.(map[string]any)
		if !ok {
			return nil, &ManifestError{Path: path, Message: "'auto_blocks' must be a mapping"}
		}
		for id, cfg := range bm {
			// Non-mapping configs are kept out so the renderer reports
			// them as missing.
			if c, ok := cfg.(map[string]any); ok {
				m.AutoBlocks[id] = cast.ToStringMap(c)
			}
		}
	}
	return m, nil
}
