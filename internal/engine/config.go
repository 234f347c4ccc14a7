package engine

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/paperfig/internal/ir"
)

// Default run parameters.
const (
	DefaultMaxIterations      = 3
	DefaultQualityThreshold   = 0.75
	DefaultDimensionThreshold = 0.55
	DefaultTemplatePack       = "expanded_v1"
	DefaultManifestPath       = "docs/docs_manifest.yaml"
)

// Config is the explicit per-orchestrator configuration. Two orchestrators
// with different Configs share nothing but the run root.
type Config struct {
	// RunRoot is the directory holding one subdirectory per run.
	RunRoot string

	MaxIterations      int
	QualityThreshold   float64
	DimensionThreshold float64
	TemplatePack       string

	// ArchCritiqueMode is ir.ArchCritiqueInline or ir.ArchCritiqueOff.
	ArchCritiqueMode          string
	ArchCritiqueBlockSeverity ir.Severity
	// ArchCritiqueRules restricts the inline critique; empty means all rules.
	ArchCritiqueRules []string

	ReproAuditMode ir.AuditMode

	DocsManifestPath string
	// DocsAutoRegen regenerates drifted docs during generate. The docs gate
	// fails the run on drift either way.
	DocsAutoRegen bool

	// ConfigHash is the fingerprint of the settings this Config came from.
	ConfigHash string
	Seed       *int64

	// StyleRefs is handed to every generate call and persisted as
	// style_refs.json. Nil is recorded as an empty object.
	StyleRefs map[string]any

	// Contrib writes contributor notes (planner/critic notes, contrib.log).
	Contrib bool
}

// DefaultConfig returns the built-in defaults rooted at runRoot.
func DefaultConfig(runRoot string) Config {
	return Config{
		RunRoot:                   runRoot,
		MaxIterations:             DefaultMaxIterations,
		QualityThreshold:          DefaultQualityThreshold,
		DimensionThreshold:        DefaultDimensionThreshold,
		TemplatePack:              DefaultTemplatePack,
		ArchCritiqueMode:          ir.ArchCritiqueInline,
		ArchCritiqueBlockSeverity: ir.SeverityCritical,
		ReproAuditMode:            ir.AuditSoft,
		DocsManifestPath:          DefaultManifestPath,
		DocsAutoRegen:             true,
	}
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	if c.RunRoot == "" {
		return NewConfigurationError("run root must not be empty", nil)
	}
	if c.MaxIterations < 1 {
		return NewConfigurationError(fmt.Sprintf("max_iterations must be >= 1, got %d", c.MaxIterations), nil)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return NewConfigurationError(fmt.Sprintf("quality_threshold must be in [0,1], got %v", c.QualityThreshold), nil)
	}
	if c.DimensionThreshold < 0 || c.DimensionThreshold > 1 {
		return NewConfigurationError(fmt.Sprintf("dimension_threshold must be in [0,1], got %v", c.DimensionThreshold), nil)
	}
	if c.ArchCritiqueMode != ir.ArchCritiqueInline && c.ArchCritiqueMode != ir.ArchCritiqueOff {
		return NewConfigurationError(fmt.Sprintf("arch_critique_mode must be inline or off, got %q", c.ArchCritiqueMode), nil)
	}
	if !c.ArchCritiqueBlockSeverity.Valid() {
		return NewConfigurationError(fmt.Sprintf("invalid block severity %q", c.ArchCritiqueBlockSeverity), nil)
	}
	if _, err := ir.ParseAuditMode(string(c.ReproAuditMode)); err != nil {
		return NewConfigurationError("invalid reproducibility mode", err)
	}
	return nil
}

// Deps are the collaborators an orchestrator sequences. Parser, Planner,
// Generator and Critic are required; a nil ArchCritic, Auditor or Drift
// skips the corresponding gate, and a nil Exporter makes Export fail.
type Deps struct {
	Parser     DocumentParser
	Planner    Planner
	Generator  Generator
	Critic     Critic
	ArchCritic ArchitectureCritic
	Auditor    Auditor
	Drift      DriftChecker
	Exporter   Exporter
	Index      RunIndex
}

func (d Deps) validate() error {
	switch {
	case d.Parser == nil:
		return NewConfigurationError("document parser is required", nil)
	case d.Planner == nil:
		return NewConfigurationError("planner is required", nil)
	case d.Generator == nil:
		return NewConfigurationError("generator is required", nil)
	case d.Critic == nil:
		return NewConfigurationError("critic is required", nil)
	}
	return nil
}

// RerunOverrides replaces recorded run parameters. Only non-nil fields win.
type RerunOverrides struct {
	MaxIterations             *int
	QualityThreshold          *float64
	DimensionThreshold        *float64
	TemplatePack              *string
	ArchCritiqueMode          *string
	ArchCritiqueBlockSeverity *ir.Severity
	ReproAuditMode            *ir.AuditMode
}

// recordedRun is a decoded run.json plus the keys it actually contains, so
// a recorded zero is told apart from a value the run never recorded.
type recordedRun struct {
	meta ir.RunMetadata
	keys map[string]json.RawMessage
}

func decodeRecordedRun(data []byte) (recordedRun, error) {
	var rec recordedRun
	if err := json.Unmarshal(data, &rec.keys); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec.meta); err != nil {
		return rec, err
	}
	return rec, nil
}

// has reports whether run.json carries a non-null value for key.
func (r recordedRun) has(key string) bool {
	raw, ok := r.keys[key]
	return ok && string(raw) != "null"
}

// configFromMetadata rebuilds a Config from a recorded run, keeping base
// values for anything run.json does not record.
func configFromMetadata(base Config, rec recordedRun, ov RerunOverrides) Config {
	cfg := base
	meta := rec.meta
	if rec.has("max_iterations") {
		cfg.MaxIterations = meta.MaxIterations
	}
	if rec.has("quality_threshold") {
		cfg.QualityThreshold = meta.QualityThreshold
	}
	if rec.has("dimension_threshold") {
		cfg.DimensionThreshold = meta.DimensionThreshold
	}
	if meta.TemplatePack != "" {
		cfg.TemplatePack = meta.TemplatePack
	}
	if meta.ArchCritiqueMode != "" {
		cfg.ArchCritiqueMode = meta.ArchCritiqueMode
	}
	if meta.ArchCritiqueBlockSeverity != "" {
		cfg.ArchCritiqueBlockSeverity = meta.ArchCritiqueBlockSeverity
	}
	if rec.has("arch_critique_rules") {
		cfg.ArchCritiqueRules = append([]string{}, meta.ArchCritiqueRules...)
	}
	if meta.ReproAuditMode != "" {
		cfg.ReproAuditMode = meta.ReproAuditMode
	}
	if rec.has("docs_auto_regen") {
		cfg.DocsAutoRegen = meta.DocsAutoRegen
	}
	if meta.ConfigHash != "" {
		cfg.ConfigHash = meta.ConfigHash
	}
	cfg.Seed = meta.Seed

	if ov.MaxIterations != nil {
		cfg.MaxIterations = *ov.MaxIterations
	}
	if ov.QualityThreshold != nil {
		cfg.QualityThreshold = *ov.QualityThreshold
	}
	if ov.DimensionThreshold != nil {
		cfg.DimensionThreshold = *ov.DimensionThreshold
	}
	if ov.TemplatePack != nil {
		cfg.TemplatePack = *ov.TemplatePack
	}
	if ov.ArchCritiqueMode != nil {
		cfg.ArchCritiqueMode = *ov.ArchCritiqueMode
	}
	if ov.ArchCritiqueBlockSeverity != nil {
		cfg.ArchCritiqueBlockSeverity = *ov.ArchCritiqueBlockSeverity
	}
	if ov.ReproAuditMode != nil {
		cfg.ReproAuditMode = *ov.ReproAuditMode
	}
	return cfg
}
