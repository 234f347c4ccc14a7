// Package critic scores rendered SVG candidates on four quality dimensions.
//
// Scores are heuristics over the SVG text and the figure plan. They are
// deterministic for a given artifact, plan and document.
package critic

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// Dimension names, in report order.
const (
	Faithfulness = "faithfulness"
	Readability  = "readability"
	Conciseness  = "conciseness"
	Aesthetics   = "aesthetics"
)

// Dimensions lists every scored dimension.
var Dimensions = []string{Faithfulness, Readability, Conciseness, Aesthetics}

// ReviseRecommendation is appended to every failing report.
const ReviseRecommendation = "Revise layout to improve clarity and alignment with the paper."

type guidance struct {
	issue          string
	recommendation string
}

// Issue order follows the order reviewers read a figure in, not Dimensions.
var guidanceOrder = []string{Readability, Faithfulness, Conciseness, Aesthetics}

var dimensionGuidance = map[string]guidance{
	Readability: {
		"Readability below threshold: labels or visual structure are insufficient.",
		"Add clear labels, improve hierarchy, and avoid dense overlaps.",
	},
	Faithfulness: {
		"Faithfulness below threshold: figure support from source spans is weak.",
		"Tie every key label and relation to explicit source text spans.",
	},
	Conciseness: {
		"Conciseness below threshold: figure is either too sparse or overloaded.",
		"Keep only essential elements and remove decorative clutter.",
	},
	Aesthetics: {
		"Aesthetics below threshold: layout balance and presentation need refinement.",
		"Improve alignment, spacing, and consistent visual encoding.",
	},
}

var primitives = []string{"<rect", "<path", "<line", "<circle", "<polygon"}

// Critic implements engine.Critic.
type Critic struct{}

// New returns a heuristic critic.
func New() *Critic {
	return &Critic{}
}

// Critique reads req.ArtifactPath and scores it.
func (c *Critic) Critique(ctx context.Context, req engine.CritiqueRequest) (ir.CritiqueReport, error) {
	if err := ctx.Err(); err != nil {
		return ir.CritiqueReport{}, err
	}
	data, err := os.ReadFile(req.ArtifactPath)
	if err != nil {
		return ir.CritiqueReport{}, fmt.Errorf("read artifact: %w", err)
	}
	return Score(string(data), req.Plan, req.Document, req.Threshold, req.DimensionThreshold), nil
}

// Score builds a report for svg without touching the filesystem.
func Score(svg string, plan ir.FigurePlan, doc *ir.Document, threshold, dimThreshold float64) ir.CritiqueReport {
	dims := map[string]float64{
		Faithfulness: faithfulness(svg, plan, doc),
		Readability:  readability(svg),
		Conciseness:  conciseness(svg),
		Aesthetics:   aesthetics(svg),
	}

	var sum float64
	failed := []string{}
	for _, name := range Dimensions {
		sum += dims[name]
		if dims[name] < dimThreshold {
			failed = append(failed, name)
		}
	}
	score := sum / float64(len(Dimensions))

	issues := []string{}
	recs := []string{}
	for _, name := range guidanceOrder {
		if contains(failed, name) {
			g := dimensionGuidance[name]
			issues = append(issues, g.issue)
			recs = append(recs, g.recommendation)
		}
	}

	passed := score >= threshold && len(failed) == 0 && !hasInvalidIssue(issues)
	if !passed {
		recs = append(recs, ReviseRecommendation)
	}

	rounded := make(map[string]float64, len(dims))
	for k, v := range dims {
		rounded[k] = round3(v)
	}
	return ir.CritiqueReport{
		FigureID:           plan.FigureID,
		Score:              round3(math.Min(score, 1)),
		Threshold:          threshold,
		QualityDimensions:  rounded,
		DimensionThreshold: dimThreshold,
		FailedDimensions:   failed,
		Issues:             issues,
		Recommendations:    recs,
		Passed:             passed,
	}
}

func faithfulness(svg string, plan ir.FigurePlan, doc *ir.Document) float64 {
	score := 0.35
	if len(plan.SourceSpans) > 0 {
		score += 0.3
	}
	if len(strings.TrimSpace(plan.Description)) > 20 {
		score += 0.1
	}
	if plan.Kind == "results_plot" && doc.SectionText("results") != "" {
		score += 0.15
	}
	if strings.Contains(svg, "data-source-span") {
		score += 0.05
	}
	return math.Min(score, 1)
}

func readability(svg string) float64 {
	score := 0.3
	switch texts := strings.Count(svg, "<text"); {
	case texts >= 2:
		score += 0.25
	case texts == 1:
		score += 0.15
	}
	for _, tag := range primitives[:4] {
		if strings.Contains(svg, tag) {
			score += 0.2
			break
		}
	}
	if strings.Contains(svg, "font-size") {
		score += 0.1
	}
	if strings.Contains(svg, "viewBox") {
		score += 0.1
	}
	return math.Min(score, 1)
}

func conciseness(svg string) float64 {
	score := 0.5
	switch n := len(svg); {
	case n >= 250 && n <= 9000:
		score += 0.25
	case n > 12000:
		score -= 0.2
	default:
		score -= 0.1
	}
	var count int
	for _, tag := range primitives {
		count += strings.Count(svg, tag)
	}
	switch {
	case count >= 1 && count <= 40:
		score += 0.2
	case count > 120:
		score -= 0.2
	}
	return math.Max(math.Min(score, 1), 0)
}

func aesthetics(svg string) float64 {
	score := 0.35
	if strings.Contains(svg, "viewBox") && strings.Contains(svg, "width") && strings.Contains(svg, "height") {
		score += 0.2
	}
	if strings.Contains(svg, "stroke") {
		score += 0.15
	}
	if strings.Contains(svg, "fill") {
		score += 0.15
	}
	if strings.Contains(svg, "font-family") {
		score += 0.1
	}
	return math.Min(score, 1)
}

func hasInvalidIssue(issues []string) bool {
	for _, issue := range issues {
		if strings.Contains(strings.ToLower(issue), "invalid") {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
