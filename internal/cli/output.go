package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/paperfig/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run failed a gate or could not generate a figure
	ExitCommandError = 2 // Unknown run, bad configuration or invalid input
)

// Error codes carried in CLIError.Code for failures that are not RunErrors.
const (
	ErrCodeGeneric = "ERROR"
	ErrCodeIndex   = "INDEX"
	ErrCodeLint    = "TEMPLATE_INVALID"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitCodeFor maps engine errors onto process exit codes.
func exitCodeFor(err error) int {
	switch {
	case engine.IsNotFound(err), engine.IsConfigurationError(err):
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// errorCodeFor returns the RunError code of err, or ErrCodeGeneric.
func errorCodeFor(err error) string {
	var re *engine.RunError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "NOT_FOUND", "GATE_FAILURE", ...
	Message string `json:"message"`           // human-readable message
	Gate    string `json:"gate,omitempty"`    // failed gate, for GATE_FAILURE
	Details any    `json:"details,omitempty"` // additional context
}

// Success writes data. JSON output wraps it in a CLIResponse; text output
// calls render, or prints data when render is nil.
func (f *OutputFormatter) Success(data any, render func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if render != nil {
		render(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", renderFail(iconFail+" Error"), code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// details is attached to JSON output, such as a partial report.
func (f *OutputFormatter) Fail(err error, details any) error {
	code := errorCodeFor(err)
	if f.Format == "json" {
		var runID string
		var re *engine.RunError
		cliErr := &CLIError{Code: code, Message: err.Error(), Details: details}
		if errors.As(err, &re) {
			runID = re.RunID
			cliErr.Gate = re.Gate
		}
		if encErr := json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: cliErr, RunID: runID}); encErr != nil {
			return encErr
		}
	} else if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCodeFor(err), code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
