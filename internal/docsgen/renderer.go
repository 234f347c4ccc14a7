package docsgen

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/roach88/paperfig/internal/templates"
)

// Auto block types.
const (
	BlockCLICommands  = "cli_commands"
	BlockFlowTemplate = "flow_template_catalog"
	BlockStatic       = "static"
)

var startMarker = regexp.MustCompile(`<!--\s*AUTO-GEN:START\s+([A-Za-z0-9_\-]+)\s*-->`)

func endMarker(id string) *regexp.Regexp {
	return regexp.MustCompile(`<!--\s*AUTO-GEN:END\s+` + regexp.QuoteMeta(id) + `\s*-->`)
}

// Renderer renders auto blocks.
type Renderer struct {
	// RepoRoot anchors relative template directories.
	RepoRoot string
	// Commands is the CLI command catalog listed by cli_commands blocks.
	Commands []string
}

// RenderBlock renders one block body. Bodies start and end with a newline
// so markers stay on their own lines.
func (r Renderer) RenderBlock(id string, cfg map[string]any) (string, error) {
	switch typ := cast.ToString(cfg["type"]); typ {
	case BlockCLICommands:
		lines := make([]string, 0, len(r.Commands))
		for _, c := range r.Commands {
			lines = append(lines, "- `paperfig "+c+"`")
		}
		return "\n" + strings.Join(lines, "\n") + "\n", nil

	case BlockFlowTemplate:
		src := templates.NewSource("")
		if dir := cast.ToString(cfg["template_dir"]); dir != "" {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(r.RepoRoot, dir)
			}
			src = templates.NewSource(dir)
		}
		pack := cast.ToString(cfg["pack_id"])
		catalog, err := src.Catalog(pack)
		if err != nil {
			return "", fmt.Errorf("block %s: %w", id, err)
		}
		lines := make([]string, 0, len(catalog.Templates))
		for _, t := range catalog.Templates {
			lines = append(lines, fmt.Sprintf("- `%s` (%s)", t.ID, t.Kind))
		}
		return "\n" + strings.Join(lines, "\n") + "\n", nil

	case BlockStatic:
		return "\n" + strings.Trim(cast.ToString(cfg["content"]), "\n") + "\n", nil

	default:
		return "", fmt.Errorf("unknown auto block type for %q: %q", id, typ)
	}
}

// RenderResult is the outcome of rendering one document.
type RenderResult struct {
	Text          string
	Rendered      []string
	MissingConfig []string
}

// Render replaces the body of every complete auto block in text. Blocks
// without a config are left untouched and reported in MissingConfig.
func (r Renderer) Render(text string, blocks map[string]map[string]any) (RenderResult, error) {
	res := RenderResult{Rendered: []string{}, MissingConfig: []string{}}
	var out strings.Builder
	pos := 0
	for pos < len(text) {
		loc := startMarker.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, bodyStart := pos+loc[0], pos+loc[1]
		id := text[pos+loc[2] : pos+loc[3]]

		end := endMarker(id).FindStringIndex(text[bodyStart:])
		if end == nil {
			// Unterminated block: keep the marker and keep scanning after it.
			out.WriteString(text[pos:bodyStart])
			pos = bodyStart
			continue
		}
		blockEnd := bodyStart + end[1]

		out.WriteString(text[pos:start])
		cfg, ok := blocks[id]
		if !ok {
			res.MissingConfig = append(res.MissingConfig, id)
			out.WriteString(text[start:blockEnd])
		} else {
			body, err := r.RenderBlock(id, cfg)
			if err != nil {
				return RenderResult{}, err
			}
			res.Rendered = append(res.Rendered, id)
			fmt.Fprintf(&out, "<!-- AUTO-GEN:START %s -->%s<!-- AUTO-GEN:END %s -->", id, body, id)
		}
		pos = blockEnd
	}
	out.WriteString(text[pos:])
	res.Text = out.String()
	return res, nil
}
