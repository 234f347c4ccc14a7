// Package generator renders candidate figures into an iteration directory.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// FileSpec is the render request persisted next to each candidate.
const FileSpec = "spec.json"

// RenderSpec is everything a render backend receives for one figure.
type RenderSpec struct {
	FigureID         string               `json:"figure_id"`
	Title            string               `json:"title"`
	Kind             string               `json:"kind"`
	Description      string               `json:"description"`
	AbstractionLevel string               `json:"abstraction_level"`
	TemplateID       string               `json:"template_id"`
	SourceText       map[string]string    `json:"source_text"`
	SourceSpans      []ir.SourceSpan      `json:"source_spans"`
	StyleRefs        map[string]any       `json:"style_refs"`
	CritiqueFeedback *ir.CritiqueFeedback `json:"critique_feedback"`
	Iteration        int                  `json:"iteration"`
}

// Rendering is a backend's answer: the SVG and the elements it drew.
type Rendering struct {
	SVG      string       `json:"svg"`
	Elements []ir.Element `json:"elements"`
}

// Renderer turns a spec into an SVG.
type Renderer interface {
	Render(ctx context.Context, spec RenderSpec) (Rendering, error)
}

// Generator implements engine.Generator on top of a Renderer.
type Generator struct {
	renderer Renderer
}

// New returns a Generator rendering through r.
func New(r Renderer) *Generator {
	return &Generator{renderer: r}
}

// BuildSpec assembles the render spec for one request.
func (g *Generator) BuildSpec(req engine.GenerateRequest) RenderSpec {
	spans := req.Plan.SourceSpans
	if spans == nil {
		spans = []ir.SourceSpan{}
	}
	refs := req.StyleRefs
	if refs == nil {
		refs = map[string]any{}
	}
	return RenderSpec{
		FigureID:         req.Plan.FigureID,
		Title:            req.Plan.Title,
		Kind:             req.Plan.Kind,
		Description:      req.Plan.Description,
		AbstractionLevel: req.Plan.AbstractionLevel,
		TemplateID:       req.Plan.TemplateID,
		SourceText: map[string]string{
			"methodology": req.Document.SectionText("methodology"),
			"system":      req.Document.SectionText("system"),
			"results":     req.Document.SectionText("results"),
		},
		SourceSpans:      spans,
		StyleRefs:        refs,
		CritiqueFeedback: req.Feedback,
		Iteration:        req.Iteration,
	}
}

// Generate writes spec.json, the SVG, element metadata and traceability
// into req.OutputDir.
func (g *Generator) Generate(ctx context.Context, req engine.GenerateRequest) (ir.Candidate, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return ir.Candidate{}, fmt.Errorf("create output dir: %w", err)
	}
	spec := g.BuildSpec(req)
	if err := writeJSON(filepath.Join(req.OutputDir, FileSpec), spec); err != nil {
		return ir.Candidate{}, err
	}

	out, err := g.renderer.Render(ctx, spec)
	if err != nil {
		return ir.Candidate{}, fmt.Errorf("render %s iteration %d: %w", spec.FigureID, spec.Iteration, err)
	}

	elements := out.Elements
	if len(elements) == 0 {
		elements = []ir.Element{{
			ID:          spec.FigureID + "-summary",
			Type:        "group",
			Label:       spec.Title,
			SourceSpans: spec.SourceSpans,
		}}
	}

	cand := ir.Candidate{
		FigureID:            spec.FigureID,
		ArtifactPath:        filepath.Join(req.OutputDir, engine.ArtifactSVG),
		ElementMetadataPath: filepath.Join(req.OutputDir, engine.ArtifactElements),
		TraceabilityPath:    filepath.Join(req.OutputDir, engine.ArtifactTrace),
	}
	if err := os.WriteFile(cand.ArtifactPath, []byte(out.SVG), 0o644); err != nil {
		return ir.Candidate{}, fmt.Errorf("write svg: %w", err)
	}
	if err := writeJSON(cand.ElementMetadataPath, elements); err != nil {
		return ir.Candidate{}, err
	}
	if err := writeJSON(cand.TraceabilityPath, ir.BuildTraceability(spec.FigureID, elements)); err != nil {
		return ir.Candidate{}, err
	}
	return cand, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
