package coordinator

import (
	"time"

	"github.com/kbukum/taskgraph/dag"
)

// TaskState is the lifecycle state of a task entry.
type TaskState string

const (
	StateQueued    TaskState = "queued"
	StateRunning   TaskState = "running"
	StateSucceeded TaskState = "succeeded"
	StateFailed    TaskState = "failed"
	StateCanceled  TaskState = "canceled"
	StateSkipped   TaskState = "skipped"
)

// String returns the state name.
func (s TaskState) String() string { return string(s) }

// IsTerminal reports whether the state is final.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateSkipped:
		return true
	}
	return false
}

// outcome maps a terminal state onto its dependency outcome.
func (s TaskState) outcome() (dag.Outcome, bool) {
	switch s {
	case StateSucceeded:
		return dag.OutcomeCompleted, true
	case StateFailed:
		return dag.OutcomeFailed, true
	case StateCanceled:
		return dag.OutcomeCanceled, true
	case StateSkipped:
		return dag.OutcomeSkipped, true
	}
	return 0, false
}

// CompletionStatus is the result a caller reports for a task.
type CompletionStatus string

const (
	StatusSucceeded CompletionStatus = CompletionStatus(StateSucceeded)
	StatusFailed    CompletionStatus = CompletionStatus(StateFailed)
	StatusCanceled  CompletionStatus = CompletionStatus(StateCanceled)
)

// Valid reports whether s is one of the accepted completion statuses.
func (s CompletionStatus) Valid() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// CompletionDetails carries optional data reported with a completion.
type CompletionDetails struct {
	Reason     string
	TokensUsed int64
}

// TaskEntry is the lifecycle record of one task.
type TaskEntry struct {
	ID             string     `json:"id"`
	HumanKey       string     `json:"humanKey"`
	State          TaskState  `json:"state"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	WorktreePath   string     `json:"worktreePath,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	TokensUsed     int64      `json:"tokensUsed,omitempty"`
	IdempotencyKey string     `json:"idempotencyKey"`
}

// Duration returns the time between start and completion, if both are set.
func (e TaskEntry) Duration() (time.Duration, bool) {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0, false
	}
	return e.CompletedAt.Sub(*e.StartedAt), true
}

// Counts tallies entries by outcome class.
type Counts struct {
	Running   int `json:"running"`
	Queued    int `json:"queued"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SchedulingDecision is returned by every scheduling call.
type SchedulingDecision struct {
	ToStart     []string `json:"toStart"`
	ToSkip      []string `json:"toSkip"`
	AllTerminal bool     `json:"allTerminal"`
	Summary     Counts   `json:"summary"`
}

// StateSnapshot groups copies of all entries by state, in graph order.
type StateSnapshot struct {
	Queued    []TaskEntry `json:"queued"`
	Running   []TaskEntry `json:"running"`
	Succeeded []TaskEntry `json:"succeeded"`
	Failed    []TaskEntry `json:"failed"`
	Canceled  []TaskEntry `json:"canceled"`
	Skipped   []TaskEntry `json:"skipped"`
}

// ChildCounts tallies entries per state for the run summary.
type ChildCounts struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
	Skipped   int `json:"skipped"`
}

// BudgetSummary reports token budget usage.
type BudgetSummary struct {
	Configured *int64 `json:"configured"`
	Used       int64  `json:"used"`
	Exceeded   bool   `json:"exceeded"`
}

// RunSummary reports the state and performance of a run.
type RunSummary struct {
	RunID                  string        `json:"runId"`
	ParallelEnabled        bool          `json:"parallelEnabled"`
	MaxConcurrencyConfig   int           `json:"maxConcurrencyConfig"`
	WallTimeMs             int64         `json:"wallTimeMs"`
	TotalChildDurationMs   int64         `json:"totalChildDurationMs"`
	MaxConcurrencyObserved int           `json:"maxConcurrencyObserved"`
	SpeedupRatio           float64       `json:"speedupRatio"`
	Children               ChildCounts   `json:"children"`
	Budget                 BudgetSummary `json:"budget"`
	Events                 []Event       `json:"events"`
	DAGErrors              []string      `json:"dagErrors"`
}
