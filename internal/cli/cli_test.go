package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/ir"
	"github.com/roach88/paperfig/internal/store"
)

const samplePaper = `# Sparse Routing for Figure Synthesis

## Abstract
We study automatic figure synthesis for research papers.

## 1. Approach
Our pipeline has three stages: parse, plan and render.
Each stage hands a typed artifact to the next.

## 2. System Architecture
The planner module talks to the renderer service over a queue.

## 3. Results
Accuracy improves by 12% over the baseline on every benchmark.
`

// workspace chdirs into a fresh directory holding paper.md and returns
// root options that hand out the given run ids.
func workspace(t *testing.T, runIDs ...string) *RootOptions {
	t.Helper()
	t.Setenv("PAPERFIG_OTEL_ENABLED", "")
	t.Setenv("PAPERFIG_STYLE_REF", "")
	t.Setenv("PAPERFIG_RENDERER_STYLE_REF", "")
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("paper.md", []byte(samplePaper), 0o644))
	opts := &RootOptions{}
	if len(runIDs) > 0 {
		opts.RunIDs = engine.NewFixedGenerator(runIDs...)
	}
	return opts
}

// execute runs one command line against a fresh command tree that shares
// opts.RunIDs.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{RunIDs: opts.RunIDs})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil && resp.Data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.CLIResponse
}

func TestGenerate_EndToEnd(t *testing.T) {
	opts := workspace(t, "run-1")

	out, err := execute(t, opts, "generate", "paper.md", "--format", "json", "--contrib")
	require.NoError(t, err, out)

	var result RunResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", result.RunID)
	assert.Positive(t, result.Aggregate.TotalFigures)
	assert.Len(t, result.Figures, result.Aggregate.TotalFigures)

	runDir := filepath.Join("runs", "run-1")
	for _, name := range []string{engine.FileRunMetadata, engine.FilePlan, engine.FileInspect, engine.FileReproAudit, engine.FileContributing, engine.FileStyleRefs} {
		assert.FileExists(t, filepath.Join(runDir, name))
	}
	assert.FileExists(t, filepath.Join("runs", IndexFile))
}

func TestGenerate_TextOutput(t *testing.T) {
	opts := workspace(t, "run-1")

	out, err := execute(t, opts, "generate", "paper.md", "--max-iterations", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1 succeeded")
	assert.Contains(t, out, "accepted")
}

func TestGenerate_MissingPaperIsNotFound(t *testing.T) {
	opts := workspace(t, "run-1")

	out, err := execute(t, opts, "generate", "missing.md", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeData(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGenerate_InvalidFlagValues(t *testing.T) {
	opts := workspace(t, "run-1")

	_, err := execute(t, opts, "generate", "paper.md", "--arch-critique", "sometimes")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, opts, "generate", "paper.md", "--audit-mode", "strict")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, opts, "generate", "paper.md", "--max-iterations", "0")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGenerate_DocsDriftGateExitsOne(t *testing.T) {
	opts := workspace(t, "run-1")
	require.NoError(t, os.MkdirAll("docs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("docs", "docs_manifest.yaml"), []byte(`
documents:
  - path: docs/missing.md
    mode: generated
`), 0o644))

	out, err := execute(t, opts, "generate", "paper.md", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeData(t, out, nil)
	assert.Equal(t, "GATE_FAILURE", resp.Error.Code)
	assert.Equal(t, engine.GateDocsDrift, resp.Error.Gate)
	assert.Equal(t, "run-1", resp.RunID)
}

func TestRunLifecycleCommands(t *testing.T) {
	opts := workspace(t, "run-1", "run-2")
	_, err := execute(t, opts, "generate", "paper.md")
	require.NoError(t, err)

	t.Run("inspect writes output file", func(t *testing.T) {
		out, err := execute(t, opts, "inspect", "run-1", "--format", "json", "--output", "summary.json")
		require.NoError(t, err)
		var summary engine.InspectSummary
		decodeData(t, out, &summary)
		assert.Equal(t, "run-1", summary.RunID)
		assert.FileExists(t, "summary.json")
	})

	t.Run("inspect filter", func(t *testing.T) {
		out, err := execute(t, opts, "inspect", "run-1", "--format", "json", "--figure-id", "nope")
		require.NoError(t, err)
		var summary engine.InspectSummary
		decodeData(t, out, &summary)
		assert.Empty(t, summary.Figures)
	})

	t.Run("rerun", func(t *testing.T) {
		out, err := execute(t, opts, "rerun", "run-1", "--format", "json", "--max-iterations", "1")
		require.NoError(t, err, out)
		var result RunResult
		decodeData(t, out, &result)
		assert.Equal(t, "run-2", result.RunID)
		assert.Equal(t, "run-1", result.RerunOf)
	})

	t.Run("diff", func(t *testing.T) {
		out, err := execute(t, opts, "diff", "run-1", "run-2", "--format", "json", "--output", "diff-out")
		require.NoError(t, err)
		var report engine.DiffReport
		decodeData(t, out, &report)
		assert.Equal(t, "run-1", report.RunID1)
		assert.FileExists(t, filepath.Join("diff-out", engine.FileDiff))
	})

	t.Run("export", func(t *testing.T) {
		out, err := execute(t, opts, "export", "run-1", "--format", "json")
		require.NoError(t, err)
		var report engine.ExportReport
		decodeData(t, out, &report)
		assert.NotEmpty(t, report.Figures)
		assert.FileExists(t, filepath.Join("runs", "run-1", engine.DirExports, engine.FileExportReport))
	})

	t.Run("critique architecture", func(t *testing.T) {
		out, err := execute(t, opts, "critique-architecture", "run-1", "--block-severity", "major")
		require.NoError(t, err, "a blocked report does not change the exit code")
		assert.Contains(t, out, "blocked at major")
	})

	t.Run("runs lists both runs newest first", func(t *testing.T) {
		out, err := execute(t, opts, "runs", "--format", "json")
		require.NoError(t, err)
		var result RunsResult
		decodeData(t, out, &result)
		require.Len(t, result.Runs, 2)
		for _, r := range result.Runs {
			assert.Equal(t, engine.RunStatusSucceeded, r.Status)
		}
	})

	t.Run("runs lineage", func(t *testing.T) {
		out, err := execute(t, opts, "runs", "--run-id", "run-1", "--format", "json")
		require.NoError(t, err)
		var result RunsResult
		decodeData(t, out, &result)
		assert.Equal(t, []string{"run-2"}, result.Reruns)
	})

	t.Run("hard audit failure exits one", func(t *testing.T) {
		figures, err := os.ReadDir(filepath.Join("runs", "run-1", engine.DirFigures))
		require.NoError(t, err)
		require.NotEmpty(t, figures)
		runDir := filepath.Join("runs", "run-1")
		require.NoError(t, os.Remove(filepath.Join(engine.FinalDir(runDir, figures[0].Name()), engine.ArtifactSVG)))

		_, err = execute(t, opts, "audit", "run-1", "--mode", "soft")
		require.NoError(t, err)

		_, err = execute(t, opts, "audit", "run-1", "--mode", "hard")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})
}

func TestAudit_ConfigHashIgnoresRunFlags(t *testing.T) {
	opts := workspace(t, "run-1")

	out, err := execute(t, opts, "generate", "paper.md",
		"--max-iterations", "1", "--quality-threshold", "0.1", "--audit-mode", "hard")
	require.NoError(t, err, out)

	out, err = execute(t, opts, "audit", "run-1", "--mode", "hard", "--format", "json")
	require.NoError(t, err, out)

	var report ir.ReproReport
	decodeData(t, out, &report)
	assert.True(t, report.Passed)
	var matched bool
	for _, c := range report.Checks {
		if c.CheckID == "config_hash_match" {
			matched = c.Passed
		}
	}
	assert.True(t, matched, "config_hash_match should pass without the generate flags")
}

func TestGenerate_StyleRefFromEnvironment(t *testing.T) {
	opts := workspace(t, "run-1")
	require.NoError(t, os.WriteFile("journal.json", []byte(`{"name": "journal"}`), 0o644))
	t.Setenv("PAPERFIG_STYLE_REF", "journal.json")

	out, err := execute(t, opts, "generate", "paper.md", "--max-iterations", "1", "--format", "json")
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join("runs", "run-1", engine.FileStyleRefs))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "journal"}`, string(data))
}

func TestGenerate_MissingStyleRefIsExitTwo(t *testing.T) {
	opts := workspace(t, "run-1")
	t.Setenv("PAPERFIG_STYLE_REF", "missing.json")

	out, err := execute(t, opts, "generate", "paper.md", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "CONFIGURATION", decodeData(t, out, nil).Error.Code)
	assert.NoDirExists(t, filepath.Join("runs", "run-1"))
}

func TestUnknownRunIsExitTwo(t *testing.T) {
	opts := workspace(t)
	for _, args := range [][]string{
		{"inspect", "run-missing"},
		{"export", "run-missing"},
		{"audit", "run-missing"},
		{"critique-architecture", "run-missing"},
		{"rerun", "run-missing"},
		{"runs", "--run-id", "run-missing"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, opts, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestCritiqueArchitecture_ListRules(t *testing.T) {
	opts := workspace(t)

	out, err := execute(t, opts, "critique-architecture", "--list-rules", "--format", "json")
	require.NoError(t, err)
	var rules []engine.RuleInfo
	decodeData(t, out, &rules)
	require.NotEmpty(t, rules)
	assert.Equal(t, "empty_plan", rules[0].ID)

	_, err = execute(t, opts, "critique-architecture")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDocsCheck_NoManifestIsClean(t *testing.T) {
	opts := workspace(t)

	out, err := execute(t, opts, "docs", "check", "--report-path", "drift.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Drift detected: false")
	assert.FileExists(t, "drift.json")
}

func TestDocsCheck_DriftExitsOne(t *testing.T) {
	opts := workspace(t)
	require.NoError(t, os.MkdirAll("docs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("docs", "docs_manifest.yaml"), []byte(`
documents:
  - path: docs/missing.md
    mode: generated
`), 0o644))

	_, err := execute(t, opts, "docs", "check")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestTemplatesCommands(t *testing.T) {
	opts := workspace(t)

	out, err := execute(t, opts, "templates", "list", "--format", "json")
	require.NoError(t, err)
	var catalog struct {
		Pack      string `json:"pack"`
		Templates []struct {
			ID string `json:"id"`
		} `json:"templates"`
	}
	decodeData(t, out, &catalog)
	assert.Equal(t, engine.DefaultTemplatePack, catalog.Pack)
	assert.NotEmpty(t, catalog.Templates)

	for _, sub := range []string{"validate", "lint"} {
		out, err := execute(t, opts, "templates", sub)
		require.NoError(t, err, out)
		assert.Contains(t, out, "are valid")
	}
}

func TestTemplatesLint_ReportsInvalidFiles(t *testing.T) {
	opts := workspace(t)
	require.NoError(t, os.MkdirAll("flows", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("flows", "bad.yaml"), []byte("id: bad\n"), 0o644))

	out, err := execute(t, opts, "templates", "lint", "--dir", "flows", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeData(t, out, nil)
	assert.Equal(t, ErrCodeLint, resp.Error.Code)
}

func TestRuns_EmptyIndex(t *testing.T) {
	opts := workspace(t)

	out, err := execute(t, opts, "runs", "--format", "json")
	require.NoError(t, err)
	var result RunsResult
	decodeData(t, out, &result)
	assert.Equal(t, []store.RunEntry{}, result.Runs)

	_, err = execute(t, opts, "runs", "--status", "exploded")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFileAndRunRootFlag(t *testing.T) {
	opts := workspace(t, "run-1")
	require.NoError(t, os.WriteFile("custom.yaml", []byte(`
run:
  root: from-config
index:
  disabled: true
`), 0o644))

	_, err := execute(t, opts, "generate", "paper.md", "--config", "custom.yaml")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join("from-config", "run-1"))
	assert.NoFileExists(t, filepath.Join("from-config", IndexFile))

	opts.RunIDs = engine.NewFixedGenerator("run-2")
	_, err = execute(t, opts, "generate", "paper.md", "--config", "custom.yaml", "--run-root", "flag-root")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join("flag-root", "run-2"))

	_, err = execute(t, opts, "generate", "paper.md", "--config", "nope.yaml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	opts := workspace(t)
	_, err := execute(t, opts, "runs", "--format", "xml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCommandCatalogCommand(t *testing.T) {
	opts := workspace(t)
	out, err := execute(t, opts, "command-catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "paperfig generate\n")
	assert.NotContains(t, out, "completion")
}
