package templates

import (
	"sort"
	"strings"

	"github.com/roach88/paperfig/internal/ir"
)

// Select returns the templates whose required sections all have text and
// whose trigger rules all match doc, ordered by order hint. Ties keep
// catalog order.
func Select(templates []FlowTemplate, doc *ir.Document) []FlowTemplate {
	selected := []FlowTemplate{}
	for _, t := range templates {
		if !hasSections(t, doc) || !triggered(t, doc) {
			continue
		}
		selected = append(selected, t)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].OrderHint < selected[j].OrderHint
	})
	return selected
}

func hasSections(t FlowTemplate, doc *ir.Document) bool {
	for _, name := range t.RequiredSections {
		if strings.TrimSpace(doc.SectionText(name)) == "" {
			return false
		}
	}
	return true
}

func triggered(t FlowTemplate, doc *ir.Document) bool {
	for _, rule := range t.TriggerRules {
		if !rule.Matches(doc) {
			return false
		}
	}
	return true
}

// Matches reports whether the rule fires for doc. A rule naming a
// section the document does not have never matches.
func (r TriggerRule) Matches(doc *ir.Document) bool {
	if r.Section == "" {
		return true
	}
	if doc == nil {
		return false
	}
	section, ok := doc.Sections[r.Section]
	if !ok {
		return false
	}
	if len(r.Keywords) == 0 {
		return true
	}
	text := strings.ToLower(section.Text)
	for _, kw := range r.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
