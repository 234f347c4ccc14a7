package archcritic

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/templates"
)

// TemplateSource resolves the template ids of a pack.
type TemplateSource interface {
	TemplateIDs(pack string) ([]string, error)
}

// RuleContext is everything a rule may look at. Artifacts that are absent
// or unreadable are nil.
type RuleContext struct {
	RunDir   string
	RepoRoot string

	Metadata    *ir.RunMetadata
	Plan        []ir.FigurePlan
	PlanPresent bool
	Inspect     *engine.InspectSummary
	DriftReport *ir.DocsDriftReport

	// TemplateIDs is the catalog of the run's template pack. Empty when
	// the catalog could not be loaded.
	TemplateIDs map[string]bool
}

func readOptional(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func loadContext(runDir, repoRoot string, src TemplateSource) *RuleContext {
	rc := &RuleContext{RunDir: runDir, RepoRoot: repoRoot, TemplateIDs: map[string]bool{}}

	var meta ir.RunMetadata
	if readOptional(filepath.Join(runDir, engine.FileRunMetadata), &meta) {
		rc.Metadata = &meta
	}
	var plan []ir.FigurePlan
	if readOptional(filepath.Join(runDir, engine.FilePlan), &plan) {
		rc.Plan = plan
		rc.PlanPresent = true
	}
	var inspect engine.InspectSummary
	if readOptional(filepath.Join(runDir, engine.FileInspect), &inspect) {
		rc.Inspect = &inspect
	}
	var drift ir.DocsDriftReport
	if readOptional(filepath.Join(runDir, engine.FileDocsDrift), &drift) {
		rc.DriftReport = &drift
	}

	if rc.Metadata != nil && src != nil {
		pack := rc.Metadata.TemplatePack
		if pack == "" {
			pack = templates.DefaultPack
		}
		if ids, err := src.TemplateIDs(pack); err == nil {
			for _, id := range ids {
				rc.TemplateIDs[id] = true
			}
		}
	}
	return rc
}
