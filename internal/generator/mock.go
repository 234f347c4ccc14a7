package generator

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/roach88/paperfig/internal/ir"
)

const (
	nodeWidth   = 160
	nodeHeight  = 56
	nodeSpacing = 200
	marginX     = 20
)

// MockRenderer draws a deterministic box-and-arrow SVG with one node per
// source span. Identical specs always render identical bytes.
type MockRenderer struct{}

// Render implements Renderer.
func (MockRenderer) Render(ctx context.Context, spec RenderSpec) (Rendering, error) {
	if err := ctx.Err(); err != nil {
		return Rendering{}, err
	}

	width := marginX*2 + max(1, len(spec.SourceSpans))*nodeSpacing
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="180" viewBox="0 0 %d 180" data-figure="%s" data-iteration="%d">`+"\n",
		width, width, html.EscapeString(spec.FigureID), spec.Iteration)
	fmt.Fprintf(&b, `  <text x="%d" y="28" font-family="Helvetica, Arial, sans-serif" font-size="16" fill="#1f2933">%s</text>`+"\n",
		marginX, html.EscapeString(spec.Title))

	var elements []ir.Element
	for i, span := range spec.SourceSpans {
		x := marginX + i*nodeSpacing
		id := fmt.Sprintf("%s-node-%d", spec.FigureID, i+1)
		fmt.Fprintf(&b, `  <g id="%s" data-source-span="%s:%d-%d">`+"\n", html.EscapeString(id), html.EscapeString(span.Section), span.Start, span.End)
		fmt.Fprintf(&b, `    <rect x="%d" y="60" width="%d" height="%d" rx="6" fill="#e4f0fb" stroke="#2f6690" stroke-width="1.5"/>`+"\n", x, nodeWidth, nodeHeight)
		fmt.Fprintf(&b, `    <text x="%d" y="93" font-family="Helvetica, Arial, sans-serif" font-size="12" fill="#1f2933">%s</text>`+"\n", x+12, html.EscapeString(span.Section))
		b.WriteString("  </g>\n")
		if i > 0 {
			fmt.Fprintf(&b, `  <line x1="%d" y1="88" x2="%d" y2="88" stroke="#2f6690" stroke-width="1.5"/>`+"\n", x-(nodeSpacing-nodeWidth), x)
		}
		elements = append(elements, ir.Element{ID: id, Type: "node", Label: span.Section, SourceSpans: []ir.SourceSpan{span}})
	}
	if fb := spec.CritiqueFeedback; fb != nil && len(fb.FailedDimensions) > 0 {
		fmt.Fprintf(&b, "  <!-- revised for: %s -->\n", html.EscapeString(strings.Join(fb.FailedDimensions, ", ")))
	}
	b.WriteString("</svg>\n")
	return Rendering{SVG: b.String(), Elements: elements}, nil
}
