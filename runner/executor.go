package runner

import (
	"context"

	"github.com/kbukum/taskgraph/coordinator"
)

// Task is one attempt at executing a task.
type Task struct {
	ID             string
	HumanKey       string
	Command        string
	RunID          string
	WorktreePath   string
	IdempotencyKey string
	// Attempt is 1-based.
	Attempt  int
	Metadata map[string]any
}

// Result is the outcome of one attempt.
type Result struct {
	Status     coordinator.CompletionStatus
	Reason     string
	TokensUsed int64
}

// Succeeded returns a successful result.
func Succeeded(tokens int64) Result {
	return Result{Status: coordinator.StatusSucceeded, TokensUsed: tokens}
}

// Failed returns a failed result with reason.
func Failed(reason string, tokens int64) Result {
	return Result{Status: coordinator.StatusFailed, Reason: reason, TokensUsed: tokens}
}

// Canceled returns a canceled result.
func Canceled(tokens int64) Result {
	return Result{Status: coordinator.StatusCanceled, Reason: "canceled", TokensUsed: tokens}
}

// Executor runs a task. A returned error means the attempt could not be
// made at all; task failures are reported through Result.Status.
type Executor interface {
	Execute(ctx context.Context, task Task) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, task Task) (Result, error)

// Execute calls f(ctx, task).
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (Result, error) {
	return f(ctx, task)
}
