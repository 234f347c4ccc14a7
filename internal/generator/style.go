package generator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed styles/conference_default.json
var defaultStyleRefs []byte

// LoadStyleRefs reads the style references at path, or the built-in
// conference_default style when path is empty.
func LoadStyleRefs(path string) (map[string]any, error) {
	data := defaultStyleRefs
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read style references: %w", err)
		}
	}
	refs := map[string]any{}
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("decode style references %s: %w", styleName(path), err)
	}
	return refs, nil
}

func styleName(path string) string {
	if path == "" {
		return "conference_default"
	}
	return path
}
