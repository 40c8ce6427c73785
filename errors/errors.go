package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Input ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// InvalidStatus creates a new AppError for a completion status that is not terminal.
func InvalidStatus(taskID, status string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidStatus, Message: fmt.Sprintf("Status %q is not a completion status", status),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"task_id": taskID, "status": status},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// --- Graph ---

// CycleDetected creates a new AppError for a dependency cycle. path lists the
// task ids on the cycle; display is its human-readable rendering.
func CycleDetected(path []string, display string) *AppError {
	if display == "" {
		display = strings.Join(path, " → ")
	}
	return &AppError{
		Code: ErrCodeCycleDetected, Message: fmt.Sprintf("circular dependency detected: %s", display),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"cycle_path": path},
	}
}

// --- Run ---

// BudgetExhausted creates a new AppError for a run halted by its token budget.
func BudgetExhausted(used, budget int64, queued int) *AppError {
	return &AppError{
		Code:       ErrCodeBudgetExhausted,
		Message:    fmt.Sprintf("token budget exhausted (%d/%d), %d task(s) left queued", used, budget, queued),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"budget_used": used, "budget": budget, "queued": queued},
	}
}

// RunStalled creates a new AppError for a run in which nothing can start.
func RunStalled(queued int) *AppError {
	return &AppError{
		Code:       ErrCodeRunStalled,
		Message:    fmt.Sprintf("run stalled with %d queued task(s) and nothing running", queued),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"queued": queued},
	}
}

// TaskFailed creates a new retryable AppError for a failed task attempt.
func TaskFailed(taskID, reason string) *AppError {
	return &AppError{
		Code: ErrCodeTaskFailed, Message: fmt.Sprintf("task %s failed: %s", taskID, reason),
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"task_id": taskID, "reason": reason},
	}
}

// --- Internal ---

// Storage creates a new AppError for a persistence failure.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStorage, Message: fmt.Sprintf("Storage operation %q failed.", op),
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"operation": op}, Cause: cause,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
