package docsgen

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// Document errors recorded in a DocReport.
const (
	ErrDocumentMissing = "document_missing"
	ErrMissingConfig   = "missing_block_config"
	ErrMissingSections = "missing_required_sections"
)

const timestampFormat = "2006-01-02T15:04:05Z"

// Checker implements engine.DriftChecker over a repository checkout.
type Checker struct {
	repoRoot string
	renderer Renderer
	now      func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithCommands sets the command catalog rendered into cli_commands blocks.
func WithCommands(commands []string) Option {
	return func(c *Checker) {
		c.renderer.Commands = commands
	}
}

// WithNow sets the clock used for checked_at.
func WithNow(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// NewChecker returns a Checker resolving manifest and document paths
// against repoRoot.
func NewChecker(repoRoot string, opts ...Option) *Checker {
	c := &Checker{
		repoRoot: repoRoot,
		renderer: Renderer{RepoRoot: repoRoot},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.repoRoot, path)
}

// Check renders every managed document and compares it with the file on
// disk. Unless checkOnly, drifted documents are rewritten. A missing
// document is drift; a missing manifest is not, and yields a warning.
func (c *Checker) Check(ctx context.Context, manifestPath string, checkOnly bool) (ir.DocsDriftReport, error) {
	report := ir.DocsDriftReport{
		CheckedAt:    c.now().UTC().Format(timestampFormat),
		ManifestPath: manifestPath,
		CheckOnly:    checkOnly,
		Documents:    []ir.DocReport{},
	}

	manifest, err := LoadManifest(c.resolve(manifestPath))
	if errors.Is(err, fs.ErrNotExist) {
		report.Warnings = []string{"docs manifest not found: " + manifestPath}
		return report, nil
	}
	if err != nil {
		return ir.DocsDriftReport{}, engine.NewConfigurationError("invalid docs manifest", err)
	}

	for _, entry := range manifest.Documents {
		if err := ctx.Err(); err != nil {
			return ir.DocsDriftReport{}, err
		}
		doc, drift := c.checkDocument(entry, manifest.AutoBlocks, checkOnly)
		if drift {
			report.DriftDetected = true
		}
		report.Documents = append(report.Documents, doc)
	}
	return report, nil
}

// checkDocument reports on one document. drift is true when the document
// is missing, could not be rendered or written, or differs from its
// rendering.
func (c *Checker) checkDocument(entry DocEntry, blocks map[string]map[string]any, checkOnly bool) (doc ir.DocReport, drift bool) {
	doc = ir.DocReport{
		Path:                    entry.Path,
		Mode:                    entry.Mode,
		MissingRequiredSections: []string{},
		RenderedBlocks:          []string{},
		MissingBlockConfigs:     []string{},
	}
	path := c.resolve(entry.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		doc.Error = ErrDocumentMissing
		if !errors.Is(err, fs.ErrNotExist) {
			doc.Exists = true
			doc.Error = err.Error()
		}
		return doc, true
	}
	doc.Exists = true

	original := string(data)
	rendered := original
	if entry.Rendered() {
		res, err := c.renderer.Render(original, blocks)
		if err != nil {
			doc.Error = err.Error()
			return doc, true
		}
		rendered = res.Text
		doc.RenderedBlocks = res.Rendered
		doc.MissingBlockConfigs = res.MissingConfig
		if len(res.MissingConfig) > 0 {
			doc.Error = ErrMissingConfig
		}
	}

	for _, section := range entry.RequiredSections {
		if !strings.Contains(rendered, section) {
			doc.MissingRequiredSections = append(doc.MissingRequiredSections, section)
		}
	}
	if len(doc.MissingRequiredSections) > 0 {
		doc.Error = ErrMissingSections
	}

	if rendered != original {
		doc.Drift = true
		if !checkOnly {
			if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
				doc.Error = err.Error()
				return doc, true
			}
			doc.Written = true
		}
	}
	return doc, doc.Drift
}
