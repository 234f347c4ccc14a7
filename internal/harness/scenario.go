package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/paperfig/internal/ir"
)

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "run-scenario"

// Scenario is one orchestrator run with scripted collaborators.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	RunID       string `yaml:"run_id,omitempty"`

	Config ScenarioConfig       `yaml:"config,omitempty"`
	Plan   []PlanStep           `yaml:"plan"`
	Critic map[string][]Verdict `yaml:"critic,omitempty"`

	// GeneratorFailAt and CriticFailAt make a collaborator error for a
	// figure on the given iteration (generator) or call number (critic).
	GeneratorFailAt map[string]int `yaml:"generator_fail_at,omitempty"`
	CriticFailAt    map[string]int `yaml:"critic_fail_at,omitempty"`

	DocsDrift    bool          `yaml:"docs_drift,omitempty"`
	ArchFindings []FindingStep `yaml:"arch_findings,omitempty"`
	AuditChecks  []CheckStep   `yaml:"audit_checks,omitempty"`

	Expect     ExpectClause `yaml:"expect"`
	Assertions []Assertion  `yaml:"assertions"`
}

// ScenarioConfig overrides engine defaults. Zero values keep the default.
type ScenarioConfig struct {
	MaxIterations    int     `yaml:"max_iterations,omitempty"`
	QualityThreshold float64 `yaml:"quality_threshold,omitempty"`
	// ArchCritique is "inline" or "off".
	ArchCritique  string `yaml:"arch_critique,omitempty"`
	BlockSeverity string `yaml:"block_severity,omitempty"`
	AuditMode     string `yaml:"audit_mode,omitempty"`
	Contrib       bool   `yaml:"contrib,omitempty"`
}

// PlanStep is one figure of the scripted plan.
type PlanStep struct {
	FigureID string `yaml:"figure_id"`
	Title    string `yaml:"title"`
	Kind     string `yaml:"kind,omitempty"`
}

// Verdict is one scripted critique.
type Verdict struct {
	Score  float64  `yaml:"score"`
	Passed bool     `yaml:"passed,omitempty"`
	Failed []string `yaml:"failed,omitempty"`
}

// FindingStep is a scripted architecture finding.
type FindingStep struct {
	FindingID string      `yaml:"finding_id"`
	Severity  ir.Severity `yaml:"severity"`
}

// CheckStep is a scripted reproducibility check.
type CheckStep struct {
	CheckID  string      `yaml:"check_id"`
	Required bool        `yaml:"required"`
	Passed   bool        `yaml:"passed"`
	Severity ir.Severity `yaml:"severity,omitempty"`
}

// ExpectClause is the expected run outcome.
type ExpectClause struct {
	Outcome string `yaml:"outcome"`
	Gate    string `yaml:"gate,omitempty"`
}

// Assertion validates the call trace, a figure summary or the run directory.
type Assertion struct {
	Type string `yaml:"type"`

	// Call is the call kind (call_contains, call_count).
	Call string `yaml:"call,omitempty"`
	// Calls is the expected order (call_order).
	Calls []string `yaml:"calls,omitempty"`
	// Figure restricts call assertions and selects the figure for figure_state.
	Figure    string `yaml:"figure,omitempty"`
	Iteration int    `yaml:"iteration,omitempty"`
	Count     int    `yaml:"count,omitempty"`
	// Path is relative to the run directory (file_exists, file_absent).
	Path string `yaml:"path,omitempty"`
	// Expect holds figure summary fields by json name (figure_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Supported assertion types.
const (
	AssertCallContains = "call_contains"
	AssertCallOrder    = "call_order"
	AssertCallCount    = "call_count"
	AssertFigureState  = "figure_state"
	AssertFileExists   = "file_exists"
	AssertFileAbsent   = "file_absent"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if s.RunID == "" {
		s.RunID = DefaultRunID
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	seen := map[string]bool{}
	for i, p := range s.Plan {
		if p.FigureID == "" {
			return fmt.Errorf("plan[%d]: figure_id is required", i)
		}
		if seen[p.FigureID] {
			return fmt.Errorf("plan[%d]: duplicate figure_id %q", i, p.FigureID)
		}
		seen[p.FigureID] = true
	}
	for id := range s.Critic {
		if !seen[id] {
			return fmt.Errorf("critic: unknown figure %q", id)
		}
	}
	for _, f := range s.ArchFindings {
		if !f.Severity.Valid() {
			return fmt.Errorf("arch_findings: %s: invalid severity %q", f.FindingID, f.Severity)
		}
	}

	switch s.Expect.Outcome {
	case OutcomeSuccess, OutcomeGenerationFailure, OutcomeError:
	case OutcomeGateFailure:
		if s.Expect.Gate == "" {
			return fmt.Errorf("expect: gate is required for gate_failure")
		}
	case "":
		return fmt.Errorf("expect: outcome is required")
	default:
		return fmt.Errorf("expect: unknown outcome %q", s.Expect.Outcome)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCallContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for call_contains", index)
		}
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertCallCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertFigureState:
		if a.Figure == "" {
			return fmt.Errorf("assertions[%d]: figure is required for figure_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for figure_state", index)
		}
	case AssertFileExists, AssertFileAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
