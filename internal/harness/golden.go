package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/paperfig/internal/ir"
)

// Snapshot is the golden view of a scenario run: its outcome and the
// ordered collaborator calls.
type Snapshot struct {
	ScenarioName string `json:"scenario_name"`
	RunID        string `json:"run_id"`
	Outcome      string `json:"outcome"`
	Gate         string `json:"gate,omitempty"`
	Trace        []Call `json:"trace"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(name string, r *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		RunID:        r.RunID,
		Outcome:      r.Outcome,
		Gate:         r.Gate,
		Trace:        r.Trace,
	}
}

// RunWithGolden runs a scenario in a temp directory and compares its
// snapshot with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(context.Background(), s, t.TempDir())
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	data, err := ir.MarshalCanonical(NewSnapshot(name, result))
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
