// Package archcritic evaluates a finished run directory against a fixed
// registry of architecture rules.
package archcritic

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
)

// Critic implements engine.ArchitectureCritic.
type Critic struct {
	repoRoot  string
	templates TemplateSource
	rules     []Rule
}

// New returns a critic that resolves flow docs under repoRoot and template
// ids through src. A nil src disables the template reference rule.
func New(repoRoot string, src TemplateSource) *Critic {
	return &Critic{repoRoot: repoRoot, templates: src, rules: Rules}
}

// ListRules describes the registry in id order.
func (c *Critic) ListRules() []engine.RuleInfo {
	infos := make([]engine.RuleInfo, 0, len(c.rules))
	for _, r := range c.rules {
		infos = append(infos, engine.RuleInfo{ID: r.ID, Description: r.Description, Severity: r.Severity})
	}
	return infos
}

func (c *Critic) resolve(enabled []string) ([]Rule, error) {
	if len(enabled) == 0 {
		return c.rules, nil
	}
	byID := make(map[string]Rule, len(c.rules))
	ids := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}
	var out []Rule
	for _, id := range enabled {
		r, ok := byID[id]
		if !ok {
			return nil, engine.NewConfigurationError(
				fmt.Sprintf("unknown architecture rule %q; available: %s", id, strings.Join(ids, ", ")), nil)
		}
		out = append(out, r)
	}
	return out, nil
}

// Critique runs the enabled rules (all when enabled is empty) against
// runDir. GeneratedAt is left for the caller to stamp.
func (c *Critic) Critique(ctx context.Context, runDir string, block ir.Severity, enabled []string) (ir.ArchitectureReport, error) {
	if err := ctx.Err(); err != nil {
		return ir.ArchitectureReport{}, err
	}
	rules, err := c.resolve(enabled)
	if err != nil {
		return ir.ArchitectureReport{}, err
	}

	rc := loadContext(runDir, c.repoRoot, c.templates)
	findings := []ir.Finding{}
	for _, r := range rules {
		findings = append(findings, r.Check(rc)...)
	}

	return ir.ArchitectureReport{
		RunID:         filepath.Base(runDir),
		BlockSeverity: block,
		Findings:      findings,
		Blocked:       ir.IsBlocked(findings, block),
		Summary:       Summarize(findings),
	}, nil
}

// Summarize renders the one-line report summary.
func Summarize(findings []ir.Finding) string {
	max, ok := ir.MaxSeverity(findings)
	if !ok {
		return "No architecture findings."
	}
	return fmt.Sprintf("%d finding(s); highest severity=%s", len(findings), max)
}
