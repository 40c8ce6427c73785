package coordinator

import "time"

// EventType names a scheduling event.
type EventType string

const (
	EventChildStarted   EventType = "child_started"
	EventChildCompleted EventType = "child_completed"
	EventChildSkipped   EventType = "child_skipped"
	EventBudgetExceeded EventType = "budget_exceeded"
)

// Event is one entry in a run's append-only event log. Payload fields
// that do not apply to the event type are left empty.
type Event struct {
	Type         EventType `json:"type"`
	RunID        string    `json:"runId"`
	Timestamp    time.Time `json:"timestamp"`
	TaskID       string    `json:"taskId,omitempty"`
	HumanKey     string    `json:"humanKey,omitempty"`
	WorktreePath string    `json:"worktreePath,omitempty"`
	Status       string    `json:"status,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	DurationMs   int64     `json:"durationMs,omitempty"`
	TokensUsed   int64     `json:"tokensUsed,omitempty"`
	BudgetUsed   int64     `json:"budgetUsed,omitempty"`
	CostBudget   int64     `json:"costBudget,omitempty"`
}

// EventSink receives events as they are appended to the log. Publish is
// called synchronously from Coordinator methods and must not call back
// into the Coordinator.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Publish calls f(e).
func (f EventSinkFunc) Publish(e Event) { f(e) }
