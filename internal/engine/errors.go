package engine

import (
	"errors"
	"fmt"
)

// RunError represents an error surfaced by an orchestrator operation.
//
// Run errors fall into four categories:
//   - Not found: the referenced run (or its source document) is absent
//   - Configuration: malformed metadata, plan, manifest, template or rule set
//   - Gate failure: docs drift, blocking architecture critique, or a failed
//     hard-mode audit; partial artifacts are already persisted
//   - Generation failure: a collaborator failed on a figure's first iteration
//
// A figure that never passes critique is not an error; it is reported as
// accepted=false with max_iterations_hit in the inspect summary.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when one exists.
	RunID string

	// FigureID identifies the figure being generated (generation failures).
	FigureID string

	// Gate names the finalization gate that failed (gate failures).
	Gate string

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeNotFound indicates a referenced run or document does not exist.
	ErrCodeNotFound RunErrorCode = "NOT_FOUND"

	// ErrCodeConfiguration indicates malformed configuration or persisted input.
	ErrCodeConfiguration RunErrorCode = "CONFIGURATION"

	// ErrCodeGateFailure indicates a finalization gate rejected the run.
	ErrCodeGateFailure RunErrorCode = "GATE_FAILURE"

	// ErrCodeGenerationFailure indicates a collaborator failed with no fallback.
	ErrCodeGenerationFailure RunErrorCode = "GENERATION_FAILURE"
)

// Gate names used in gate failures.
const (
	GateDocsDrift            = "docs_drift"
	GateArchitectureCritique = "architecture_critique"
	GateReproAudit           = "repro_audit"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.RunID != "" && e.Gate != "":
		msg = fmt.Sprintf("%s (run=%s, gate=%s)", msg, e.RunID, e.Gate)
	case e.RunID != "" && e.FigureID != "":
		msg = fmt.Sprintf("%s (run=%s, figure=%s)", msg, e.RunID, e.FigureID)
	case e.RunID != "":
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNotFound returns true if the error is a not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsConfigurationError returns true if the error is a configuration error.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsGateFailure returns true if the error is a finalization gate failure.
func IsGateFailure(err error) bool {
	return hasCode(err, ErrCodeGateFailure)
}

// IsGenerationFailure returns true if the error is a generation failure.
func IsGenerationFailure(err error) bool {
	return hasCode(err, ErrCodeGenerationFailure)
}

// FailedGate returns the gate name of a gate failure, or "".
func FailedGate(err error) string {
	var re *RunError
	if errors.As(err, &re) && re.Code == ErrCodeGateFailure {
		return re.Gate
	}
	return ""
}

// NewNotFoundError creates a RunError for a missing run or document.
func NewNotFoundError(runID, message string) *RunError {
	return &RunError{Code: ErrCodeNotFound, Message: message, RunID: runID}
}

// NewConfigurationError creates a RunError for malformed input.
func NewConfigurationError(message string, err error) *RunError {
	return &RunError{Code: ErrCodeConfiguration, Message: message, Err: err}
}

// NewGateFailure creates a RunError for a failed finalization gate.
func NewGateFailure(runID, gate, message string) *RunError {
	return &RunError{Code: ErrCodeGateFailure, Message: message, RunID: runID, Gate: gate}
}

// NewGenerationFailure creates a RunError for a collaborator failure that
// leaves a figure without any artifact.
func NewGenerationFailure(runID, figureID string, err error) *RunError {
	return &RunError{
		Code:     ErrCodeGenerationFailure,
		Message:  "figure generation failed on first iteration",
		RunID:    runID,
		FigureID: figureID,
		Err:      err,
	}
}
