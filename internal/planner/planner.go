// Package planner derives a figure plan from a parsed paper.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/templates"
)

// Template ids recorded on plans that did not come from a catalog.
const HeuristicTemplateID = "heuristic_fallback"

const maxQuoteRunes = 300

// CatalogSource loads the template catalog of a pack.
type CatalogSource interface {
	Catalog(pack string) (*templates.Catalog, error)
}

// Planner builds plans from flow templates, falling back to a fixed
// section heuristic when no template applies.
type Planner struct {
	catalogs CatalogSource
	newID    func() string
	logger   *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithIDGenerator replaces the random figure id generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *Planner) {
		p.newID = gen
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = l
	}
}

// New returns a Planner reading templates from catalogs. A nil catalogs
// always uses the heuristic.
func New(catalogs CatalogSource, opts ...Option) *Planner {
	p := &Planner{
		catalogs: catalogs,
		newID:    RandomFigureID,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RandomFigureID returns "fig-" and eight hex digits of a random UUID.
func RandomFigureID() string {
	return "fig-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Plan returns the ordered figure plan for doc.
func (p *Planner) Plan(ctx context.Context, doc *ir.Document, pack string) ([]ir.FigurePlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if plans := p.fromTemplates(doc, pack); len(plans) > 0 {
		return plans, nil
	}
	return p.heuristic(doc), nil
}

func (p *Planner) fromTemplates(doc *ir.Document, pack string) []ir.FigurePlan {
	if p.catalogs == nil {
		return nil
	}
	catalog, err := p.catalogs.Catalog(pack)
	if err != nil {
		p.logger.Warn("template catalog unavailable, using heuristic plan", "pack", pack, "error", err)
		return nil
	}

	selected := templates.Select(catalog.Templates, doc)
	plans := make([]ir.FigurePlan, 0, len(selected))
	for i, t := range selected {
		var spans []ir.SourceSpan
		for _, name := range t.RequiredSections {
			if span, ok := sectionSpan(doc, name); ok {
				spans = append(spans, span)
			}
		}
		plans = append(plans, p.entry(i+1, t.Kind, t.Title,
			fmt.Sprintf("Template-driven figure using %s.", t.ID),
			fmt.Sprintf("Selected by template '%s' based on required sections and trigger rules.", t.ID),
			t.ID, spans))
	}
	return plans
}

// heuristicFigures are proposed, in order, for each section with text.
var heuristicFigures = []struct {
	section, kind, title, description, justification string
}{
	{
		"methodology", "methodology", "Methodology Diagram",
		"Pipeline-level depiction of the proposed methodology and major components.",
		"The paper describes a step-by-step methodology that benefits from a flow diagram.",
	},
	{
		"system", "system_overview", "System Overview",
		"Architecture-level system overview showing modules and data flow.",
		"The system description introduces modules and their interactions that should be visualized.",
	},
	{
		"results", "results_plot", "Results Summary",
		"Key quantitative results plotted for comparison.",
		"The results section summarizes experiments that should be shown as a plot or table.",
	},
}

func (p *Planner) heuristic(doc *ir.Document) []ir.FigurePlan {
	var plans []ir.FigurePlan
	for _, h := range heuristicFigures {
		span, ok := sectionSpan(doc, h.section)
		if !ok {
			continue
		}
		plans = append(plans, p.entry(len(plans)+1, h.kind, h.title, h.description, h.justification,
			HeuristicTemplateID, []ir.SourceSpan{span}))
	}
	if len(plans) == 0 {
		plans = append(plans, p.entry(1, "summary", "Paper Summary",
			"High-level overview figure summarizing the main contribution.",
			"No explicit sections were detected; provide a summary-level figure.",
			HeuristicTemplateID, nil))
	}
	return plans
}

func (p *Planner) entry(order int, kind, title, description, justification, templateID string, spans []ir.SourceSpan) ir.FigurePlan {
	plan := ir.FigurePlan{
		FigureID:         p.newID(),
		Title:            title,
		Kind:             kind,
		Order:            order,
		AbstractionLevel: abstractionLevel(kind),
		Description:      description,
		Justification:    justification,
		TemplateID:       templateID,
		SourceSpans:      spans,
	}
	plan.Normalize()
	return plan
}

func abstractionLevel(kind string) string {
	if kind == "system_overview" || kind == "methodology" {
		return "high"
	}
	return "medium"
}

// sectionSpan cites a whole section, quoting at most its first 300 runes.
func sectionSpan(doc *ir.Document, name string) (ir.SourceSpan, bool) {
	if doc == nil {
		return ir.SourceSpan{}, false
	}
	s, ok := doc.Sections[name]
	if !ok || s.Text == "" {
		return ir.SourceSpan{}, false
	}
	quote := s.Text
	if r := []rune(quote); len(r) > maxQuoteRunes {
		quote = string(r[:maxQuoteRunes])
	}
	return ir.SourceSpan{Section: s.Name, Start: s.Start, End: s.End, Quote: strings.TrimSpace(quote)}, true
}
