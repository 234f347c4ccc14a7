package engine

import (
	"fmt"
	"path/filepath"
)

// Fixed file names inside a run directory. Inspect, diff, audit and rerun
// all read these names; changing one is a schema change.
const (
	FileRunMetadata    = "run.json"
	FilePlan           = "plan.json"
	FileSections       = "sections.json"
	FileStyleRefs      = "style_refs.json"
	FileCaptions       = "captions.txt"
	FileTraceability   = "traceability.json"
	FileInspect        = "inspect.json"
	FileDocsDrift      = "docs_drift_report.json"
	FileArchCritique   = "architecture_critique.json"
	FileReproAudit     = "repro_audit.json"
	FileExportReport   = "export_report.json"
	FileDiff           = "diff.json"
	FileContribLog     = "contrib.log"
	FilePlannerNotes   = "planner_notes.md"
	FileCriticNotes    = "critic_notes.md"
	FileContributing   = "CONTRIBUTING_NOTES.md"
	DirFigures         = "figures"
	DirFinal           = "final"
	DirExports         = "exports"
	DirDiffs           = "diffs"
	ArtifactSVG        = "figure.svg"
	ArtifactElements   = "element_metadata.json"
	ArtifactTrace      = "traceability.json"
	ArtifactCritique   = "critique.json"
	iterationDirPrefix = "iter_"
)

// RunDir returns the directory of runID under root.
func RunDir(root, runID string) string {
	return filepath.Join(root, runID)
}

// FigureDir returns figures/<figureID> inside a run directory.
func FigureDir(runDir, figureID string) string {
	return filepath.Join(runDir, DirFigures, figureID)
}

// IterationDir returns figures/<figureID>/iter_<n>.
func IterationDir(runDir, figureID string, iteration int) string {
	return filepath.Join(FigureDir(runDir, figureID), fmt.Sprintf("%s%d", iterationDirPrefix, iteration))
}

// FinalDir returns figures/<figureID>/final.
func FinalDir(runDir, figureID string) string {
	return filepath.Join(FigureDir(runDir, figureID), DirFinal)
}
