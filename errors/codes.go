package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline engine errors
const (
	// ErrCodeClassification indicates a step's calling convention could not be determined.
	ErrCodeClassification ErrorCode = "CLASSIFICATION_FAILED"
	// ErrCodeStructure indicates a role-adjacency violation in a pipeline.
	ErrCodeStructure ErrorCode = "PIPELINE_STRUCTURE"
	// ErrCodeStepExecution indicates a step's own logic failed during a run.
	ErrCodeStepExecution ErrorCode = "STEP_EXECUTION"
	// ErrCodeCancelled indicates a run was interrupted by a cancellation request.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Input errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field or parameter is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)
