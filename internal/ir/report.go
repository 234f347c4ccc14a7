package ir

import (
	"fmt"
	"strings"
)

// Severity ranks architecture findings and audit checks.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityMinor:    1,
	SeverityMajor:    2,
	SeverityCritical: 3,
}

// Severities lists the valid severities in ascending order.
var Severities = []Severity{SeverityInfo, SeverityMinor, SeverityMajor, SeverityCritical}

// Rank returns the ordinal of s. Unknown severities rank as info.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// ParseSeverity normalises and validates a severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("invalid severity %q: must be one of %v", s, Severities)
	}
	return sev, nil
}

// Finding is one architecture critique result.
type Finding struct {
	FindingID   string   `json:"finding_id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Evidence    string   `json:"evidence"`
	Suggestion  string   `json:"suggestion"`
}

// ArchitectureReport aggregates findings for a run.
type ArchitectureReport struct {
	RunID         string    `json:"run_id"`
	BlockSeverity Severity  `json:"block_severity"`
	Findings      []Finding `json:"findings"`
	Blocked       bool      `json:"blocked"`
	Summary       string    `json:"summary"`
	GeneratedAt   string    `json:"generated_at"`
}

// MaxSeverity returns the highest severity among findings and false when
// there are none.
func MaxSeverity(findings []Finding) (Severity, bool) {
	if len(findings) == 0 {
		return "", false
	}
	max := findings[0].Severity
	for _, f := range findings[1:] {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max, true
}

// IsBlocked reports whether any finding reaches the block severity.
func IsBlocked(findings []Finding, block Severity) bool {
	max, ok := MaxSeverity(findings)
	if !ok {
		return false
	}
	return max.Rank() >= block.Rank()
}

// AuditMode selects whether a failed reproducibility audit is fatal.
type AuditMode string

const (
	AuditSoft AuditMode = "soft"
	AuditHard AuditMode = "hard"
)

// ParseAuditMode validates an audit mode name.
func ParseAuditMode(s string) (AuditMode, error) {
	switch m := AuditMode(strings.ToLower(strings.TrimSpace(s))); m {
	case AuditSoft, AuditHard:
		return m, nil
	default:
		return "", fmt.Errorf("invalid audit mode %q: must be soft or hard", s)
	}
}

// ReproCheck is one reproducibility audit check.
type ReproCheck struct {
	CheckID     string         `json:"check_id"`
	Description string         `json:"description"`
	Required    bool           `json:"required"`
	Passed      bool           `json:"passed"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details"`
}

// ReproReport aggregates reproducibility checks for a run.
type ReproReport struct {
	RunID       string            `json:"run_id"`
	Mode        AuditMode         `json:"mode"`
	Checks      []ReproCheck      `json:"checks"`
	Passed      bool              `json:"passed"`
	Summary     string            `json:"summary"`
	GeneratedAt string            `json:"generated_at"`
	Environment map[string]string `json:"environment"`
}

// FailedRequired returns the required checks that did not pass.
func (r ReproReport) FailedRequired() []ReproCheck {
	var failed []ReproCheck
	for _, c := range r.Checks {
		if c.Required && !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// DocReport is the drift result for one managed document.
type DocReport struct {
	Path                    string   `json:"path"`
	Mode                    string   `json:"mode"`
	Exists                  bool     `json:"exists"`
	Drift                   bool     `json:"drift"`
	Written                 bool     `json:"written"`
	MissingRequiredSections []string `json:"missing_required_sections"`
	RenderedBlocks          []string `json:"rendered_blocks"`
	MissingBlockConfigs     []string `json:"missing_block_configs"`
	Error                   string   `json:"error"`
}

// DocsDriftReport is persisted as docs_drift_report.json.
type DocsDriftReport struct {
	CheckedAt     string      `json:"checked_at"`
	ManifestPath  string      `json:"manifest_path"`
	CheckOnly     bool        `json:"check_only"`
	DriftDetected bool        `json:"drift_detected"`
	Documents     []DocReport `json:"documents"`
	Warnings      []string    `json:"warnings,omitempty"`
}
