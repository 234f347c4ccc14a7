// Package exporter converts final figures into publication formats.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/paperfig/internal/engine"
)

// Exporter writes SVG copies and LaTeX figure snippets. This build has no
// raster backend, so PNG always reports engine.ErrUnsupportedFormat.
//
// Thread-safety: Exporter is stateless and safe for concurrent use.
type Exporter struct{}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{}
}

// SVG copies the figure at src to dst after checking it is an SVG document.
func (e *Exporter) SVG(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if !bytes.Contains(data, []byte("<svg")) {
		return fmt.Errorf("%s is not an SVG document", src)
	}
	return writeFile(dst, bytes.NewReader(data))
}

// PNG is not supported without a raster backend.
func (e *Exporter) PNG(context.Context, string, string) error {
	return fmt.Errorf("%w: png (no raster backend in this build)", engine.ErrUnsupportedFormat)
}

// LaTeX writes a figure environment that includes graphicPath.
func (e *Exporter) LaTeX(ctx context.Context, figureID, graphicPath, caption, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFile(dst, strings.NewReader(Snippet(figureID, graphicPath, caption)))
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
)

// Snippet renders the LaTeX figure environment. The caption is escaped;
// the label keeps the raw figure id.
func Snippet(figureID, graphicPath, caption string) string {
	var b strings.Builder
	b.WriteString("\\begin{figure}[t]\n")
	b.WriteString("  \\centering\n")
	fmt.Fprintf(&b, "  \\includegraphics[width=\\linewidth]{%s}\n", graphicPath)
	fmt.Fprintf(&b, "  \\caption{%s}\n", latexEscaper.Replace(caption))
	fmt.Fprintf(&b, "  \\label{fig:%s}\n", figureID)
	b.WriteString("\\end{figure}\n")
	return b.String()
}

func writeFile(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
