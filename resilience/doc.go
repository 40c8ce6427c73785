// Package resilience retries failing task attempts with exponential backoff.
//
// The scheduler itself never retries. Callers that execute tasks wrap each
// attempt in Retry so that a task is only reported as failed once its
// attempts are used up:
//
//	res, err := resilience.Retry(ctx, cfg, func(attempt int) (*runner.Result, error) {
//	    return exec.Execute(ctx, task)
//	})
package resilience
