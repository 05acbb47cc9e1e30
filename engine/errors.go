package engine

import (
	"fmt"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
)

// The engine's error taxonomy. All three are fatal for the run; the
// engine never retries. Retries, if desired, are the caller's business.

// newClassificationError reports a step function whose calling convention
// cannot be determined. Raised before the step runs.
func newClassificationError(typeName string) *errors.AppError {
	return errors.New(errors.ErrCodeClassification,
		fmt.Sprintf("cannot classify step function of type %s", typeName)).
		WithDetail("type", typeName)
}

// newStructureError reports a role-adjacency violation. Raised at the
// point the offending step is reached, not during an up-front pass.
func newStructureError(step string, role Role, message string) *errors.AppError {
	return errors.New(errors.ErrCodeStructure, message).
		WithDetail("step", step).
		WithDetail("role", string(role))
}

// newStepExecutionError wraps an error raised by a step's own logic,
// preserving the offending step identity and the original cause.
func newStepExecutionError(step string, role Role, cause error) *errors.AppError {
	return errors.New(errors.ErrCodeStepExecution,
		fmt.Sprintf("step %q failed", step)).
		WithDetail("step", step).
		WithDetail("role", string(role)).
		WithCause(cause)
}

// IsClassificationError reports whether err is a classification failure.
func IsClassificationError(err error) bool {
	return errors.HasCode(err, errors.ErrCodeClassification)
}

// IsStructureError reports whether err is a role-adjacency violation.
func IsStructureError(err error) bool {
	return errors.HasCode(err, errors.ErrCodeStructure)
}

// IsStepExecutionError reports whether err wraps a step's own failure.
func IsStepExecutionError(err error) bool {
	return errors.HasCode(err, errors.ErrCodeStepExecution)
}

// FailedStep returns the step name recorded in an engine error, if any.
func FailedStep(err error) (string, bool) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return "", false
	}
	name, ok := appErr.Details["step"].(string)
	return name, ok
}
