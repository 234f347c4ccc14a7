// Package paper extracts the sections paperfig plans figures from.
package paper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// Section names every parsed document carries.
const (
	SectionMethodology = "methodology"
	SectionSystem      = "system"
	SectionResults     = "results"
)

// sectionKeywords maps each section to the heading keywords that locate it.
var sectionKeywords = []struct {
	name     string
	keywords []string
}{
	{SectionMethodology, []string{"method", "methods", "methodology", "approach"}},
	{SectionSystem, []string{"system", "architecture", "model", "pipeline"}},
	{SectionResults, []string{"results", "experiments", "evaluation"}},
}

// headingRe matches a short heading line, optionally with a Markdown
// marker or a section number.
var headingRe = regexp.MustCompile(`(?m)^(?:#{1,6}[ \t]+)?(?:\d+\.?[ \t]+)?([A-Za-z][A-Za-z0-9 \-]{0,80})[ \t]*$`)

const (
	maxHeadingWords = 10
	windowBefore    = 500
	windowAfter     = 2000
)

// Parser reads Markdown and plain-text papers.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the document at path. PDFs are rejected as a configuration
// error; a missing file is returned as the underlying fs error.
func (p *Parser) Parse(ctx context.Context, path string) (*ir.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown", ".txt":
	case ".pdf":
		return nil, engine.NewConfigurationError(
			"PDF text extraction is not available in this build; convert the paper to Markdown", nil)
	default:
		return nil, engine.NewConfigurationError(fmt.Sprintf("unsupported file type %q", ext), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read paper: %w", err)
	}
	return ParseText(path, string(data)), nil
}

// ParseText builds a document from already-read text.
func ParseText(sourcePath, text string) *ir.Document {
	text = norm.NFC.String(text)
	return &ir.Document{
		SourcePath: sourcePath,
		FullText:   text,
		Sections:   ExtractSections(text),
	}
}

type heading struct {
	start, end int
	label      string
}

func findHeadings(text string) []heading {
	var out []heading
	for _, m := range headingRe.FindAllStringSubmatchIndex(text, -1) {
		label := strings.TrimSpace(text[m[2]:m[3]])
		if len(strings.Fields(label)) > maxHeadingWords {
			continue
		}
		out = append(out, heading{start: m[0], end: m[1], label: label})
	}
	return out
}

// ExtractSections locates the methodology, system and results sections.
// A section is the text between a heading mentioning one of its keywords
// and the next heading. Without such a heading, a window around the first
// keyword mention is used; otherwise the section is empty.
func ExtractSections(text string) map[string]ir.Section {
	headings := findHeadings(text)
	sections := make(map[string]ir.Section, len(sectionKeywords))
	for _, sk := range sectionKeywords {
		sections[sk.name] = extractSection(text, headings, sk.name, sk.keywords)
	}
	return sections
}

func extractSection(text string, headings []heading, name string, keywords []string) ir.Section {
	for i, h := range headings {
		label := strings.ToLower(h.label)
		if !containsAny(label, keywords) {
			continue
		}
		start := h.end
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		return ir.Section{Name: name, Text: strings.TrimSpace(text[start:end]), Start: start, End: end}
	}

	lowered := strings.ToLower(text)
	first := -1
	for _, kw := range keywords {
		if idx := strings.Index(lowered, kw); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}
	if first >= 0 {
		start := runeFloor(text, max(0, first-windowBefore))
		end := runeFloor(text, min(len(text), first+windowAfter))
		return ir.Section{Name: name, Text: strings.TrimSpace(text[start:end]), Start: start, End: end}
	}
	return ir.Section{Name: name}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
