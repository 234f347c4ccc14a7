package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"result": "success"}, func(io.Writer) {
		t.Fatal("text renderer must not run for JSON output")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_TextSuccessUsesRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("ignored", func(w io.Writer) { fmt.Fprint(w, "rendered") }))
	assert.Equal(t, "rendered", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain", nil))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeLint, "template invalid", map[string]string{"file": "a.yaml"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLint, resp.Error.Code)
	assert.Equal(t, "template invalid", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorDetailsOnlyWhenVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Error("E1", "boom", "extra"))
	assert.Contains(t, buf.String(), "[E1]: boom")
	assert.NotContains(t, buf.String(), "Details")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("E1", "boom", "extra"))
	assert.Contains(t, buf.String(), "Details: extra")
}

func TestOutputFormatter_FailMapsRunErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		code     string
		exitCode int
		gate     string
	}{
		{"not found", engine.NewNotFoundError("run-x", "run not found: run-x"), "NOT_FOUND", ExitCommandError, ""},
		{"configuration", engine.NewConfigurationError("bad", nil), "CONFIGURATION", ExitCommandError, ""},
		{"gate", engine.NewGateFailure("run-x", engine.GateDocsDrift, "drift"), "GATE_FAILURE", ExitFailure, engine.GateDocsDrift},
		{"generation", engine.NewGenerationFailure("run-x", "a", errors.New("render")), "GENERATION_FAILURE", ExitFailure, ""},
		{"wrapped", fmt.Errorf("outer: %w", engine.NewNotFoundError("run-x", "missing")), "NOT_FOUND", ExitCommandError, ""},
		{"plain", errors.New("disk full"), ErrCodeGeneric, ExitFailure, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail(tc.err, nil)
			assert.Equal(t, tc.exitCode, GetExitCode(err))
			assert.ErrorIs(t, err, tc.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.Equal(t, tc.gate, resp.Error.Gate)
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}

	formatter.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String(), "verbose logs never go to the JSON stream")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "x", errors.New("y"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "z"))))
}
