// Package dag builds and analyses task dependency graphs.
//
// A task declares the tasks that block it ("must finish before"). Build
// turns a list of task records into a Graph with forward (BlockedBy) and
// reverse (Blocks) edges, collecting reference errors instead of failing.
// DetectCycles finds one cycle path by depth-first search, and
// ComputeRunnableSet classifies unsettled tasks as runnable, blocked or
// terminal given the outcomes recorded so far.
//
// The package is pure: no goroutines, no I/O except LoadTaskFile.
package dag
