package ir

// Architecture critique modes recorded in run.json.
const (
	ArchCritiqueInline = "inline"
	ArchCritiqueOff    = "off"
)

// RunMetadata is persisted as run.json. It records every parameter needed
// to rebuild the orchestrator for a rerun.
type RunMetadata struct {
	RunID                     string    `json:"run_id"`
	SourcePath                string    `json:"source_path"`
	CreatedAt                 string    `json:"created_at"`
	MaxIterations             int       `json:"max_iterations"`
	QualityThreshold          float64   `json:"quality_threshold"`
	DimensionThreshold        float64   `json:"dimension_threshold"`
	TemplatePack              string    `json:"template_pack"`
	ArchCritiqueMode          string    `json:"arch_critique_mode"`
	ArchCritiqueBlockSeverity Severity  `json:"arch_critique_block_severity"`
	ArchCritiqueRules         []string  `json:"arch_critique_rules"`
	ReproAuditMode            AuditMode `json:"repro_audit_mode"`
	DocsAutoRegen             bool      `json:"docs_auto_regen"`
	ConfigHash                string    `json:"config_hash"`
	// Seed is always serialised (null when unset) so audits can see it was declared.
	Seed          *int64 `json:"seed"`
	EngineVersion string `json:"engine_version"`
	SchemaVersion string `json:"schema_version"`
	RerunOf       string `json:"rerun_of,omitempty"`
	ReusedPlan    bool   `json:"reused_plan,omitempty"`
}
