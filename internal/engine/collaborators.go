package engine

import (
	"context"
	"errors"

	"github.com/roach88/paperfig/internal/ir"
)

// DocumentParser extracts sections from a source document.
type DocumentParser interface {
	Parse(ctx context.Context, path string) (*ir.Document, error)
}

// Planner derives an ordered figure plan from a document.
// Figure ids in the returned plan must be unique.
type Planner interface {
	Plan(ctx context.Context, doc *ir.Document, templatePack string) ([]ir.FigurePlan, error)
}

// GenerateRequest is one generation round for one figure.
type GenerateRequest struct {
	Plan      ir.FigurePlan
	Document  *ir.Document
	Iteration int
	// OutputDir is figures/<id>/iter_<n>; the generator writes its artifacts here.
	OutputDir string
	// Feedback is nil on the first iteration.
	Feedback *ir.CritiqueFeedback
	// StyleRefs are the run's style references; never nil.
	StyleRefs map[string]any
}

// Generator renders one candidate figure.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (ir.Candidate, error)
}

// CritiqueRequest asks the critic to score one rendered artifact.
type CritiqueRequest struct {
	ArtifactPath       string
	Plan               ir.FigurePlan
	Document           *ir.Document
	Threshold          float64
	DimensionThreshold float64
}

// Critic scores a rendered artifact.
type Critic interface {
	Critique(ctx context.Context, req CritiqueRequest) (ir.CritiqueReport, error)
}

// RuleInfo describes one registered architecture rule.
type RuleInfo struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Severity    ir.Severity `json:"severity"`
}

// ArchitectureCritic evaluates a completed run directory against a rule set.
// A nil or empty enabledRules selects every registered rule.
type ArchitectureCritic interface {
	Critique(ctx context.Context, runDir string, blockSeverity ir.Severity, enabledRules []string) (ir.ArchitectureReport, error)
	ListRules() []RuleInfo
}

// AuditRequest describes a reproducibility audit of one run directory.
type AuditRequest struct {
	RunDir string
	Mode   ir.AuditMode
	// ExpectedFingerprint enables the config_hash_match check when non-empty.
	ExpectedFingerprint string
}

// Auditor checks a run's provenance and artifact completeness.
type Auditor interface {
	Audit(ctx context.Context, req AuditRequest) (ir.ReproReport, error)
}

// DriftChecker validates (and optionally regenerates) managed documentation.
type DriftChecker interface {
	Check(ctx context.Context, manifestPath string, checkOnly bool) (ir.DocsDriftReport, error)
}

// ErrUnsupportedFormat is returned by an Exporter that cannot produce a format.
var ErrUnsupportedFormat = errors.New("export format not supported")

// Exporter converts a final figure into publication formats.
type Exporter interface {
	SVG(ctx context.Context, src, dst string) error
	PNG(ctx context.Context, src, dst string) error
	LaTeX(ctx context.Context, figureID, graphicPath, caption, dst string) error
}

// RunRecord is the run index entry written when a run starts.
type RunRecord struct {
	RunID      string
	SourcePath string
	CreatedAt  string
	RerunOf    string
	ConfigHash string
}

// RunOutcome is the run index update written when a run finishes.
type RunOutcome struct {
	RunID         string
	Status        string
	FinishedAt    string
	TotalFigures  int
	AcceptedCount int
	Error         string
}

// Run statuses recorded in the run index.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunIndex records run lifecycle events outside the run directory.
// The run directory stays the source of truth; index failures are logged
// and never fail a run.
type RunIndex interface {
	RecordRunStarted(ctx context.Context, rec RunRecord) error
	RecordRunFinished(ctx context.Context, out RunOutcome) error
}
