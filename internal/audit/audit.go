// Package audit checks a run directory for the artifacts and provenance
// needed to reproduce it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// requiredArtifacts are the run-level files every finished run must hold.
var requiredArtifacts = []string{
	engine.FilePlan,
	engine.FileSections,
	engine.FileTraceability,
	engine.FileInspect,
	engine.FileDocsDrift,
	engine.FileCaptions,
}

// Auditor implements engine.Auditor.
type Auditor struct{}

// New returns an Auditor.
func New() *Auditor {
	return &Auditor{}
}

// runFile is run.json read twice: typed, and as raw keys so declared-but-
// null fields can be told apart from absent ones.
type runFile struct {
	present bool
	valid   bool
	meta    ir.RunMetadata
	keys    map[string]json.RawMessage
}

func readRunFile(runDir string) runFile {
	data, err := os.ReadFile(filepath.Join(runDir, engine.FileRunMetadata))
	if err != nil {
		return runFile{}
	}
	rf := runFile{present: true}
	if json.Unmarshal(data, &rf.keys) != nil || json.Unmarshal(data, &rf.meta) != nil {
		return rf
	}
	rf.valid = true
	return rf
}

// Audit runs every check against req.RunDir. The report's Passed is true
// when no required check failed; the caller decides what a failure means.
func (a *Auditor) Audit(ctx context.Context, req engine.AuditRequest) (ir.ReproReport, error) {
	if err := ctx.Err(); err != nil {
		return ir.ReproReport{}, err
	}
	runDir := req.RunDir
	rf := readRunFile(runDir)

	checks := []ir.ReproCheck{runJSONCheck(runDir, rf)}
	for _, name := range requiredArtifacts {
		checks = append(checks, artifactCheck(runDir, name, true))
	}
	checks = append(checks,
		artifactCheck(runDir, engine.FileArchCritique, rf.meta.ArchCritiqueMode == ir.ArchCritiqueInline),
		finalArtifactsCheck(runDir),
		provenanceCheck(rf),
		seedCheck(rf),
	)
	if req.ExpectedFingerprint != "" {
		checks = append(checks, fingerprintCheck(rf, req.ExpectedFingerprint))
	}

	report := ir.ReproReport{
		RunID:       filepath.Base(runDir),
		Mode:        req.Mode,
		Checks:      checks,
		Environment: Environment(),
	}
	failed := len(report.FailedRequired())
	report.Passed = failed == 0
	report.Summary = "Reproducibility checks passed."
	if failed > 0 {
		report.Summary = fmt.Sprintf("%d required reproducibility check(s) failed.", failed)
	}
	return report, nil
}

// Environment describes the toolchain and platform the audit ran on.
func Environment() map[string]string {
	return map[string]string{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"engine_version": ir.EngineVersion,
	}
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func runJSONCheck(runDir string, rf runFile) ir.ReproCheck {
	msg := presence(rf.present)
	if rf.present && !rf.valid {
		msg = "unreadable"
	}
	return ir.ReproCheck{
		CheckID:     "run_json_present",
		Description: "Run metadata file exists",
		Required:    true,
		Passed:      rf.valid,
		Severity:    ir.SeverityCritical,
		Message:     msg,
		Details:     map[string]any{"path": filepath.Join(runDir, engine.FileRunMetadata)},
	}
}

func artifactCheck(runDir, name string, required bool) ir.ReproCheck {
	path := filepath.Join(runDir, name)
	_, err := os.Stat(path)
	sev := ir.SeverityMajor
	if !required {
		sev = ir.SeverityMinor
	}
	return ir.ReproCheck{
		CheckID:     "artifact_" + name,
		Description: "Artifact exists: " + name,
		Required:    required,
		Passed:      err == nil,
		Severity:    sev,
		Message:     presence(err == nil),
		Details:     map[string]any{"path": path},
	}
}

func finalArtifactsCheck(runDir string) ir.ReproCheck {
	check := ir.ReproCheck{
		CheckID:     "final_artifacts_complete",
		Description: "Every planned figure has a final rendered artifact",
		Required:    true,
		Severity:    ir.SeverityMajor,
	}
	var plan []ir.FigurePlan
	data, err := os.ReadFile(filepath.Join(runDir, engine.FilePlan))
	if err == nil {
		err = json.Unmarshal(data, &plan)
	}
	if err != nil {
		check.Message = "plan_unreadable"
		check.Details = map[string]any{"error": err.Error()}
		return check
	}

	missing := []string{}
	for _, p := range plan {
		if _, err := os.Stat(filepath.Join(engine.FinalDir(runDir, p.FigureID), engine.ArtifactSVG)); err != nil {
			missing = append(missing, p.FigureID)
		}
	}
	check.Passed = len(missing) == 0
	check.Message = "complete"
	if !check.Passed {
		check.Message = "incomplete"
	}
	check.Details = map[string]any{"planned": len(plan), "missing": missing}
	return check
}

func provenanceCheck(rf runFile) ir.ReproCheck {
	ok := rf.valid && rf.meta.SourcePath != "" && rf.meta.CreatedAt != ""
	msg := "ok"
	if !ok {
		msg = "missing_fields"
	}
	return ir.ReproCheck{
		CheckID:     "provenance_metadata",
		Description: "Run metadata captures provenance fields",
		Required:    true,
		Passed:      ok,
		Severity:    ir.SeverityMajor,
		Message:     msg,
		Details:     map[string]any{"required_fields": []string{"source_path", "created_at"}},
	}
}

func seedCheck(rf runFile) ir.ReproCheck {
	_, declared := rf.keys["seed"]
	msg := "seed_present"
	if !declared {
		msg = "seed_missing"
	}
	return ir.ReproCheck{
		CheckID:     "deterministic_seed_declared",
		Description: "Run metadata declares a deterministic seed",
		Required:    false,
		Passed:      declared,
		Severity:    ir.SeverityMinor,
		Message:     msg,
		Details:     map[string]any{},
	}
}

func fingerprintCheck(rf runFile, expected string) ir.ReproCheck {
	actual := rf.meta.ConfigHash
	msg := "match"
	if actual != expected {
		msg = "mismatch"
	}
	return ir.ReproCheck{
		CheckID:     "config_hash_match",
		Description: "Run metadata config hash matches expected hash",
		Required:    true,
		Passed:      actual == expected,
		Severity:    ir.SeverityMajor,
		Message:     msg,
		Details:     map[string]any{"expected": expected, "actual": actual},
	}
}
