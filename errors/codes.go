package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Input errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidStatus indicates a completion status outside the accepted set.
	ErrCodeInvalidStatus ErrorCode = "INVALID_STATUS"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Graph errors
const (
	// ErrCodeCycleDetected indicates the dependency graph contains a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// Run errors
const (
	// ErrCodeBudgetExhausted indicates a run halted because the token budget tripped.
	ErrCodeBudgetExhausted ErrorCode = "BUDGET_EXHAUSTED"
	// ErrCodeRunStalled indicates queued tasks remain but none can start.
	ErrCodeRunStalled ErrorCode = "RUN_STALLED"
	// ErrCodeTaskFailed indicates an executor reported a failed attempt.
	ErrCodeTaskFailed ErrorCode = "TASK_FAILED"
)

// Internal errors
const (
	// ErrCodeStorage indicates reading or writing persisted state failed.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTaskFailed: true,
	ErrCodeStorage:    true,
	ErrCodeInternal:   false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
