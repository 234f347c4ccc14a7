package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/paperfig/internal/ir"
)

// ExportedFigure lists the files written for one figure.
type ExportedFigure struct {
	FigureID string  `json:"figure_id"`
	SVG      string  `json:"svg"`
	PNG      *string `json:"png"`
	LaTeX    string  `json:"latex"`
}

// ExportReport is persisted as export_report.json in the export directory.
type ExportReport struct {
	RunID     string           `json:"run_id"`
	OutputDir string           `json:"output_dir"`
	Figures   []ExportedFigure `json:"figures"`
	Warnings  []string         `json:"warnings"`
}

// Export writes every finalized figure of a run as SVG, LaTeX snippet and,
// when the exporter supports it, PNG. Unsupported formats become warnings.
// outputDir defaults to <run>/exports. It returns the export directory.
func (o *Orchestrator) Export(ctx context.Context, runID, outputDir string) (string, error) {
	ctx, span := o.startSpan(ctx, "paperfig.export", attribute.String("run_id", runID))
	var err error
	defer func() { endSpan(span, err) }()

	runDir, err := o.runDir(runID)
	if err != nil {
		return "", err
	}
	if o.deps.Exporter == nil {
		err = NewConfigurationError("no exporter configured", nil)
		return "", err
	}
	if outputDir == "" {
		outputDir = filepath.Join(runDir, DirExports)
	}
	if err = os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	report := ExportReport{
		RunID:     runID,
		OutputDir: outputDir,
		Figures:   []ExportedFigure{},
		Warnings:  []string{},
	}

	planByID := map[string]ir.FigurePlan{}
	var plan []ir.FigurePlan
	if readErr := readJSON(filepath.Join(runDir, FilePlan), &plan); readErr == nil {
		for _, p := range plan {
			planByID[p.FigureID] = p
		}
	}

	entries, readErr := os.ReadDir(filepath.Join(runDir, DirFigures))
	if readErr != nil && !isNotExist(readErr) {
		err = fmt.Errorf("read figures dir: %w", readErr)
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		figureID := entry.Name()
		finalDir := FinalDir(runDir, figureID)
		svgPath := filepath.Join(finalDir, ArtifactSVG)
		if !fileExists(svgPath) {
			continue
		}

		var fig ExportedFigure
		fig, err = o.exportFigure(ctx, figureID, finalDir, outputDir, planByID[figureID], &report)
		if err != nil {
			return "", err
		}
		report.Figures = append(report.Figures, fig)
	}

	for _, name := range []string{FileCaptions, FileTraceability} {
		src := filepath.Join(runDir, name)
		if !fileExists(src) {
			continue
		}
		if err = copyFile(src, filepath.Join(outputDir, name)); err != nil {
			return "", fmt.Errorf("copy %s: %w", name, err)
		}
	}

	if err = writeJSON(filepath.Join(outputDir, FileExportReport), report); err != nil {
		return "", err
	}
	o.logger.Info("run exported", "run_id", runID, "figures", len(report.Figures), "output_dir", outputDir)
	return outputDir, nil
}

func (o *Orchestrator) exportFigure(ctx context.Context, figureID, finalDir, outputDir string, plan ir.FigurePlan, report *ExportReport) (ExportedFigure, error) {
	svgSrc := filepath.Join(finalDir, ArtifactSVG)
	svgName := figureID + ".svg"
	fig := ExportedFigure{
		FigureID: figureID,
		SVG:      filepath.Join(outputDir, svgName),
		LaTeX:    filepath.Join(outputDir, figureID+".tex"),
	}

	if err := o.deps.Exporter.SVG(ctx, svgSrc, fig.SVG); err != nil {
		return fig, fmt.Errorf("export svg for %s: %w", figureID, err)
	}

	pngPath := filepath.Join(outputDir, figureID+".png")
	switch err := o.deps.Exporter.PNG(ctx, svgSrc, pngPath); {
	case err == nil:
		fig.PNG = &pngPath
	case errors.Is(err, ErrUnsupportedFormat):
		report.Warnings = append(report.Warnings, fmt.Sprintf("PNG export skipped for %s: %v", figureID, err))
	default:
		return fig, fmt.Errorf("export png for %s: %w", figureID, err)
	}

	caption := plan.Title
	if caption == "" {
		caption = figureID
	}
	if err := o.deps.Exporter.LaTeX(ctx, figureID, svgName, caption, fig.LaTeX); err != nil {
		return fig, fmt.Errorf("export latex for %s: %w", figureID, err)
	}

	traceSrc := filepath.Join(finalDir, ArtifactTrace)
	if fileExists(traceSrc) {
		if err := copyFile(traceSrc, filepath.Join(outputDir, figureID+".traceability.json")); err != nil {
			return fig, fmt.Errorf("copy traceability for %s: %w", figureID, err)
		}
	}
	return fig, nil
}
