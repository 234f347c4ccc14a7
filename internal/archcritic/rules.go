package archcritic

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/paperfig/internal/ir"
)

// Rule is one architecture check. Check must not modify the context.
type Rule struct {
	ID          string
	Description string
	// Severity is the highest severity the rule reports.
	Severity ir.Severity
	Check    func(rc *RuleContext) []ir.Finding
}

// minTraceabilityCoverage is the average coverage below which a run is
// flagged.
const minTraceabilityCoverage = 0.8

// untrackedTemplateIDs are plan template ids that never name a catalog entry.
var untrackedTemplateIDs = map[string]bool{"": true, "heuristic_fallback": true, "manual": true}

// Rules is the registry, ordered by id.
var Rules = []Rule{
	{
		ID:          "empty_plan",
		Description: "Detect runs that planned no figures.",
		Severity:    ir.SeverityCritical,
		Check:       checkEmptyPlan,
	},
	{
		ID:          "failed_figures",
		Description: "Detect final figures that did not pass critique.",
		Severity:    ir.SeverityMajor,
		Check:       checkFailedFigures,
	},
	{
		ID:          "invalid_template_reference",
		Description: "Detect plan entries that reference templates missing from the run's pack.",
		Severity:    ir.SeverityMajor,
		Check:       checkTemplateReferences,
	},
	{
		ID:          "missing_docs_drift_report",
		Description: "Verify the run recorded a documentation drift report.",
		Severity:    ir.SeverityMinor,
		Check:       checkDriftReport,
	},
	{
		ID:          "missing_flow_docs",
		Description: "Verify every architecture flow folder contains README.md and diagram.mermaid.",
		Severity:    ir.SeverityMajor,
		Check:       checkFlowDocs,
	},
	{
		ID:          "missing_inspect",
		Description: "Verify the run recorded an inspect summary.",
		Severity:    ir.SeverityMajor,
		Check:       checkInspectPresent,
	},
	{
		ID:          "missing_plan",
		Description: "Verify the run recorded a figure plan.",
		Severity:    ir.SeverityCritical,
		Check:       checkPlanPresent,
	},
	{
		ID:          "traceability_gap",
		Description: "Detect low traceability coverage across final figures.",
		Severity:    ir.SeverityMajor,
		Check:       checkTraceability,
	},
}

func one(f ir.Finding) []ir.Finding {
	return []ir.Finding{f}
}

func checkEmptyPlan(rc *RuleContext) []ir.Finding {
	if !rc.PlanPresent || len(rc.Plan) > 0 {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "empty_plan",
		Severity:    ir.SeverityCritical,
		Title:       "Empty figure plan",
		Description: "The planner produced no figures for this run.",
		Evidence:    "plan.json contains 0 entries",
		Suggestion:  "Check the parsed sections and the template pack's trigger rules.",
	})
}

func checkFailedFigures(rc *RuleContext) []ir.Finding {
	if rc.Inspect == nil || rc.Inspect.Aggregate.FailedCount == 0 {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "failed_figures",
		Severity:    ir.SeverityMajor,
		Title:       "Figures failed critique",
		Description: "One or more final figures were accepted from a failing iteration.",
		Evidence:    fmt.Sprintf("failed_count=%d", rc.Inspect.Aggregate.FailedCount),
		Suggestion:  "Inspect the failed dimensions and rerun with more iterations.",
	})
}

func checkTemplateReferences(rc *RuleContext) []ir.Finding {
	if !rc.PlanPresent || len(rc.TemplateIDs) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var invalid []string
	for _, p := range rc.Plan {
		if untrackedTemplateIDs[p.TemplateID] || rc.TemplateIDs[p.TemplateID] || seen[p.TemplateID] {
			continue
		}
		seen[p.TemplateID] = true
		invalid = append(invalid, p.TemplateID)
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return one(ir.Finding{
		FindingID:   "invalid_template_reference",
		Severity:    ir.SeverityMajor,
		Title:       "Unknown template references",
		Description: "The plan references templates that are not in the run's template pack.",
		Evidence:    strings.Join(invalid, ", "),
		Suggestion:  "Restore the missing templates or re-plan against the current pack.",
	})
}

func checkDriftReport(rc *RuleContext) []ir.Finding {
	if rc.DriftReport != nil {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "missing_docs_drift_report",
		Severity:    ir.SeverityMinor,
		Title:       "Missing docs drift report",
		Description: "The run has no readable docs_drift_report.json.",
		Evidence:    filepath.Join(rc.RunDir, "docs_drift_report.json"),
		Suggestion:  "Run the docs drift check before finalizing.",
	})
}

func checkFlowDocs(rc *RuleContext) []ir.Finding {
	flowsRoot := filepath.Join(rc.RepoRoot, "docs", "architecture", "flows")
	entries, err := os.ReadDir(flowsRoot)
	if err != nil {
		return one(ir.Finding{
			FindingID:   "missing_flow_docs",
			Severity:    ir.SeverityMajor,
			Title:       "Missing architecture flows directory",
			Description: "Architecture flow documentation directory is missing.",
			Evidence:    flowsRoot,
			Suggestion:  "Restore docs/architecture/flows with README and Mermaid diagrams.",
		})
	}

	var missing []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var parts []string
		for _, name := range []string{"README.md", "diagram.mermaid"} {
			if _, err := os.Stat(filepath.Join(flowsRoot, e.Name(), name)); err != nil {
				parts = append(parts, name)
			}
		}
		if len(parts) > 0 {
			missing = append(missing, e.Name()+": "+strings.Join(parts, ", "))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "missing_flow_docs",
		Severity:    ir.SeverityMinor,
		Title:       "Incomplete architecture flow docs",
		Description: "One or more flow folders are missing required documentation files.",
		Evidence:    strings.Join(missing, "; "),
		Suggestion:  "Add missing README.md and diagram.mermaid for each flow folder.",
	})
}

func checkInspectPresent(rc *RuleContext) []ir.Finding {
	if rc.Inspect != nil {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "missing_inspect",
		Severity:    ir.SeverityMajor,
		Title:       "Missing inspect summary",
		Description: "The run has no readable inspect.json.",
		Evidence:    filepath.Join(rc.RunDir, "inspect.json"),
		Suggestion:  "Re-run inspect for this run.",
	})
}

func checkPlanPresent(rc *RuleContext) []ir.Finding {
	if rc.PlanPresent {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "missing_plan",
		Severity:    ir.SeverityCritical,
		Title:       "Missing figure plan",
		Description: "The run has no readable plan.json.",
		Evidence:    filepath.Join(rc.RunDir, "plan.json"),
		Suggestion:  "Regenerate the run; plan.json is required for rerun.",
	})
}

func checkTraceability(rc *RuleContext) []ir.Finding {
	if rc.Inspect == nil {
		return nil
	}
	avg := rc.Inspect.Aggregate.AvgTraceabilityCoverage
	if avg == nil || *avg >= minTraceabilityCoverage {
		return nil
	}
	return one(ir.Finding{
		FindingID:   "traceability_gap",
		Severity:    ir.SeverityMajor,
		Title:       "Low traceability coverage",
		Description: "Average traceability coverage is below recommended threshold.",
		Evidence:    fmt.Sprintf("avg_traceability_coverage=%v", *avg),
		Suggestion:  "Ensure all figure elements include source span mappings.",
	})
}
