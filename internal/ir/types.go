package ir

// SourceSpan cites a region of the source document.
type SourceSpan struct {
	Section string `json:"section" yaml:"section"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
	Quote   string `json:"quote" yaml:"quote"`
}

// Section is one extracted section of the source document.
type Section struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Document is the parsed source document handed to every collaborator.
type Document struct {
	SourcePath string             `json:"source_path"`
	FullText   string             `json:"full_text"`
	Sections   map[string]Section `json:"sections"`
}

// SectionText returns the text of the named section, or "" when absent.
func (d *Document) SectionText(name string) string {
	if d == nil {
		return ""
	}
	return d.Sections[name].Text
}

// FigurePlan is a single requested figure. Entries are immutable once
// written to plan.json; plan.json is the authoritative input for rerun.
type FigurePlan struct {
	FigureID         string       `json:"figure_id" yaml:"figure_id"`
	Title            string       `json:"title" yaml:"title"`
	Kind             string       `json:"kind" yaml:"kind"`
	Order            int          `json:"order" yaml:"order"`
	AbstractionLevel string       `json:"abstraction_level" yaml:"abstraction_level"`
	Description      string       `json:"description" yaml:"description"`
	Justification    string       `json:"justification" yaml:"justification"`
	TemplateID       string       `json:"template_id" yaml:"template_id"`
	SourceSpans      []SourceSpan `json:"source_spans" yaml:"source_spans"`
}

// Normalize replaces nil slices so the entry serialises with [] instead of null.
func (p *FigurePlan) Normalize() {
	if p.SourceSpans == nil {
		p.SourceSpans = []SourceSpan{}
	}
	if p.AbstractionLevel == "" {
		p.AbstractionLevel = "medium"
	}
}

// Candidate is the artifact set produced by one generator call.
type Candidate struct {
	FigureID            string `json:"figure_id"`
	ArtifactPath        string `json:"artifact_path"`
	ElementMetadataPath string `json:"element_metadata_path"`
	TraceabilityPath    string `json:"traceability_path"`
}

// CritiqueReport is the critic's verdict on one iteration.
// Passed is the only acceptance signal the generation loop consumes.
type CritiqueReport struct {
	FigureID           string             `json:"figure_id"`
	Score              float64            `json:"score"`
	Threshold          float64            `json:"threshold"`
	QualityDimensions  map[string]float64 `json:"quality_dimensions"`
	DimensionThreshold float64            `json:"dimension_threshold"`
	FailedDimensions   []string           `json:"failed_dimensions"`
	Issues             []string           `json:"issues"`
	Recommendations    []string           `json:"recommendations"`
	Passed             bool               `json:"passed"`
}

// Normalize replaces nil collections with empty ones.
func (r *CritiqueReport) Normalize() {
	if r.QualityDimensions == nil {
		r.QualityDimensions = map[string]float64{}
	}
	if r.FailedDimensions == nil {
		r.FailedDimensions = []string{}
	}
	if r.Issues == nil {
		r.Issues = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}

// Feedback builds the feedback handed to the next generator call.
func (r CritiqueReport) Feedback() *CritiqueFeedback {
	return &CritiqueFeedback{
		PreviousScore:    r.Score,
		Issues:           append([]string{}, r.Issues...),
		Recommendations:  append([]string{}, r.Recommendations...),
		FailedDimensions: append([]string{}, r.FailedDimensions...),
	}
}

// CritiqueFeedback carries the previous iteration's critique into the
// next generation round. It is nil on the first iteration.
type CritiqueFeedback struct {
	PreviousScore    float64  `json:"previous_score"`
	Issues           []string `json:"issues"`
	Recommendations  []string `json:"recommendations"`
	FailedDimensions []string `json:"failed_dimensions"`
}

// Element is one visual element reported by the renderer.
type Element struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Label       string       `json:"label"`
	SourceSpans []SourceSpan `json:"source_spans"`
}

// ElementTrace links a rendered element back to the source spans it depicts.
type ElementTrace struct {
	ElementID   string       `json:"element_id"`
	ElementType string       `json:"element_type"`
	Label       string       `json:"label"`
	SourceSpans []SourceSpan `json:"source_spans"`
}

// Traced reports whether the element cites at least one source span.
func (e ElementTrace) Traced() bool {
	return len(e.SourceSpans) > 0
}

// TraceabilityRecord is the per-figure traceability.json document.
type TraceabilityRecord struct {
	FigureID string         `json:"figure_id"`
	Elements []ElementTrace `json:"elements"`
}

// BuildTraceability converts renderer elements into a traceability record.
func BuildTraceability(figureID string, elements []Element) TraceabilityRecord {
	traces := make([]ElementTrace, 0, len(elements))
	for _, el := range elements {
		spans := el.SourceSpans
		if spans == nil {
			spans = []SourceSpan{}
		}
		traces = append(traces, ElementTrace{
			ElementID:   el.ID,
			ElementType: el.Type,
			Label:       el.Label,
			SourceSpans: spans,
		})
	}
	return TraceabilityRecord{FigureID: figureID, Elements: traces}
}

// Coverage counts traced elements. total falls back to the number of trace
// entries when the element metadata count is zero.
func (t TraceabilityRecord) Coverage(metadataCount int) (total, traced int) {
	total = metadataCount
	if total == 0 {
		total = len(t.Elements)
	}
	for _, el := range t.Elements {
		if el.Traced() {
			traced++
		}
	}
	return total, traced
}
