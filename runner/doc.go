// Package runner drives a Coordinator to completion.
//
// A Runner owns the only goroutine that calls into the Coordinator. Tasks
// proposed by each SchedulingDecision are executed on worker goroutines by
// an Executor and their results are funneled back over a channel, so the
// Coordinator sees one completion at a time. Summary and State may be read
// from other goroutines while a run is in progress.
//
//	coord, err := coordinator.New(file.Tasks, cfg)
//	r := runner.New(coord, file.Tasks, runner.NewProcessExecutor(runner.ProcessConfig{}))
//	summary, err := r.Run(ctx)
package runner
