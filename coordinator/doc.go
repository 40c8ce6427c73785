// Package coordinator drives a dependency-ordered run over a task graph.
//
// A Coordinator owns one lifecycle entry per task and answers a single
// question on every call: which tasks should the caller start now? It never
// executes work. The caller reports starts with MarkStarted and results
// with OnChildComplete, and receives a SchedulingDecision each time.
//
// Failures propagate one level per recompute: dependents of a failed task
// are skipped, and their dependents are skipped on the following call.
// A configured token budget stops new starts once exhausted and stays
// tripped for the rest of the run.
//
// A Coordinator is not safe for concurrent use.
package coordinator
