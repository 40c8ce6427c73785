package dag

// Outcome is the settled result of a task as seen by dependency resolution.
type Outcome int

const (
	OutcomeCompleted Outcome = iota + 1
	OutcomeFailed
	OutcomeCanceled
	OutcomeSkipped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Failed reports whether dependents of a task with this outcome can never run.
func (o Outcome) Failed() bool {
	return o == OutcomeFailed || o == OutcomeCanceled || o == OutcomeSkipped
}

// Outcomes maps task ids to their settled outcome.
type Outcomes map[string]Outcome

// Set records ids with the same outcome and returns the receiver.
func (o Outcomes) Set(outcome Outcome, ids ...string) Outcomes {
	for _, id := range ids {
		o[id] = outcome
	}
	return o
}

// IDSet is a set of task ids.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// TerminalTask is an unsettled task that can never run.
type TerminalTask struct {
	ID string
	// Reason is "blocker_failed:<blocker key>".
	Reason         string
	BlockerID      string
	BlockerOutcome Outcome
}

// RunnableSet partitions the unsettled, non-running tasks.
type RunnableSet struct {
	Runnable []string
	Blocked  []string
	Terminal []TerminalTask
}

// ComputeRunnableSet classifies every task that has no outcome and is not
// running. A task whose first failed blocker (in declaration order) has a
// failed, canceled or skipped outcome is terminal. A task whose known
// blockers all completed is runnable. Anything else is blocked. Unknown
// blocker ids are treated as absent.
//
// Propagation is a single pass: a task blocked by a task that is only now
// becoming terminal stays blocked until the caller records that outcome and
// calls again. Results follow graph insertion order.
func ComputeRunnableSet(g *Graph, outcomes Outcomes, running IDSet) RunnableSet {
	var rs RunnableSet
	for _, id := range g.order {
		if _, settled := outcomes[id]; settled || running.Has(id) {
			continue
		}
		n := g.nodes[id]

		if t, ok := firstFailedBlocker(g, n, outcomes); ok {
			rs.Terminal = append(rs.Terminal, t)
			continue
		}

		ready := true
		for _, b := range n.BlockedBy {
			if !g.Has(b) {
				continue
			}
			if outcomes[b] != OutcomeCompleted {
				ready = false
				break
			}
		}
		if ready {
			rs.Runnable = append(rs.Runnable, id)
		} else {
			rs.Blocked = append(rs.Blocked, id)
		}
	}
	return rs
}

func firstFailedBlocker(g *Graph, n *Node, outcomes Outcomes) (TerminalTask, bool) {
	for _, b := range n.BlockedBy {
		outcome, ok := outcomes[b]
		if !ok || !outcome.Failed() {
			continue
		}
		key := b
		if bn, known := g.Node(b); known {
			key = bn.HumanKey
		}
		return TerminalTask{
			ID:             n.ID,
			Reason:         "blocker_failed:" + key,
			BlockerID:      b,
			BlockerOutcome: outcome,
		}, true
	}
	return TerminalTask{}, false
}
