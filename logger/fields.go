package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldRunID       = "run_id"
	FieldTaskID      = "task_id"
	FieldTaskKey     = "task_key"
	FieldState       = "state"
	FieldStatus      = "status"
	FieldReason      = "reason"
	FieldEvent       = "event"
	FieldWorktree    = "worktree"
	FieldTokensUsed  = "tokens_used"
	FieldBudgetUsed  = "budget_used"
	FieldBudget      = "budget"
	FieldAttempt     = "attempt"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldRunning     = "running"
	FieldQueued      = "queued"
	FieldToStart     = "to_start"
	FieldConcurrency = "max_concurrency"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Info("task started", logger.Fields(logger.FieldTaskID, id, "slot", 2))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}
