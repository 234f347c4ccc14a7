package paper

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
)

func TestParse_MarkdownSections(t *testing.T) {
	doc, err := NewParser().Parse(context.Background(), "testdata/paper.md")
	require.NoError(t, err)
	assert.Equal(t, "testdata/paper.md", doc.SourcePath)
	require.Len(t, doc.Sections, 3)

	m := doc.Sections[SectionMethodology]
	assert.Equal(t, "Our pipeline has three stages: parse, plan and render.\nEach stage hands a typed artifact to the next.", m.Text)
	assert.Equal(t, SectionMethodology, m.Name)
	assert.True(t, strings.HasPrefix(doc.FullText[m.Start:], "\nOur pipeline"))

	assert.Equal(t, "The planner module talks to the renderer service over a queue.", doc.SectionText(SectionSystem))
	assert.Equal(t, "Accuracy improves by 12% over the baseline on every benchmark.", doc.SectionText(SectionResults))
}

func TestExtractSections_KeywordWindowFallback(t *testing.T) {
	text := "Intro line, with punctuation.\nThe evaluation shows gains, clearly.\n"
	sections := ExtractSections(text)

	r := sections[SectionResults]
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, len(text), r.End)
	assert.Equal(t, strings.TrimSpace(text), r.Text)

	assert.Empty(t, sections[SectionSystem].Text)
	assert.Equal(t, 0, sections[SectionSystem].End)
}

func TestExtractSections_SkipsLongHeadingLines(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven method\nbody, here.\n"
	sections := ExtractSections(text)
	// The long line is not a heading, so the keyword window applies.
	assert.Equal(t, 0, sections[SectionMethodology].Start)
}

func TestRuneFloor(t *testing.T) {
	s := "aé" // é is two bytes
	assert.Equal(t, 1, runeFloor(s, 2))
	assert.Equal(t, 1, runeFloor(s, 1))
	assert.Equal(t, 3, runeFloor(s, 3))
}

func TestParse_Errors(t *testing.T) {
	p := NewParser()

	_, err := p.Parse(context.Background(), "paper.pdf")
	assert.True(t, engine.IsConfigurationError(err))

	_, err = p.Parse(context.Background(), "paper.docx")
	assert.True(t, engine.IsConfigurationError(err))
	assert.Contains(t, err.Error(), ".docx")

	_, err = p.Parse(context.Background(), filepath.Join(t.TempDir(), "gone.md"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Parse(ctx, "testdata/paper.md")
	assert.ErrorIs(t, err, context.Canceled)
}
