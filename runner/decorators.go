package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/errors"
	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/resilience"
)

// WithRetry wraps an Executor so failed attempts are retried under cfg.
// Canceled attempts and executor errors that are not retryable end the
// loop. The last attempt's result is returned with tokens summed over all
// attempts.
func WithRetry(exec Executor, cfg resilience.RetryConfig, log *logger.Logger) Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &retryingExecutor{inner: exec, cfg: cfg, log: log}
}

type retryingExecutor struct {
	inner Executor
	cfg   resilience.RetryConfig
	log   *logger.Logger
}

func (e *retryingExecutor) Execute(ctx context.Context, task Task) (Result, error) {
	cfg := e.cfg
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		e.log.WithTask(task.ID, task.HumanKey).Warn("retrying task", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldError, err.Error(),
			"backoff", backoff.String(),
		))
	}

	var (
		last    Result
		execErr error
		tokens  int64
	)
	_, err := resilience.Retry(ctx, cfg, func(attempt int) (struct{}, error) {
		t := task
		t.Attempt = attempt
		last, execErr = e.inner.Execute(ctx, t)
		tokens += last.TokensUsed
		if execErr != nil {
			return struct{}{}, execErr
		}
		if last.Status == coordinator.StatusFailed {
			return struct{}{}, errors.TaskFailed(task.ID, last.Reason)
		}
		return struct{}{}, nil
	})
	last.TokensUsed = tokens
	if execErr != nil {
		return last, execErr
	}
	if err != nil && ctx.Err() != nil {
		return Canceled(tokens), nil
	}
	return last, nil
}

// WithTracing wraps an Executor with one span per attempt.
func WithTracing(exec Executor) Executor {
	return &tracingExecutor{inner: exec}
}

type tracingExecutor struct {
	inner Executor
}

func (e *tracingExecutor) Execute(ctx context.Context, task Task) (Result, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanTaskExecute, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrRunID, task.RunID)
	observability.SetSpanAttribute(ctx, observability.AttrTaskID, task.ID)
	observability.SetSpanAttribute(ctx, observability.AttrTaskKey, task.HumanKey)
	observability.SetSpanAttribute(ctx, observability.AttrAttempt, task.Attempt)

	start := time.Now()
	res, err := e.inner.Execute(ctx, task)
	observability.SetSpanAttribute(ctx, observability.AttrDurationMs, time.Since(start).Milliseconds())

	if err != nil {
		observability.SetSpanError(ctx, err)
		return res, err
	}
	observability.SetSpanAttribute(ctx, observability.AttrStatus, string(res.Status))
	observability.SetSpanAttribute(ctx, observability.AttrTokensUsed, res.TokensUsed)
	if res.Status != coordinator.StatusSucceeded {
		observability.SetSpanError(ctx, errors.TaskFailed(task.ID, res.Reason))
	}
	return res, nil
}

// WithLogging wraps an Executor with per-attempt logging.
func WithLogging(exec Executor, log *logger.Logger) Executor {
	return &loggingExecutor{inner: exec, log: log}
}

type loggingExecutor struct {
	inner Executor
	log   *logger.Logger
}

func (e *loggingExecutor) Execute(ctx context.Context, task Task) (Result, error) {
	log := e.log.WithTask(task.ID, task.HumanKey)
	log.Debug("attempt started", logger.Fields(
		logger.FieldAttempt, task.Attempt,
		logger.FieldWorktree, task.WorktreePath,
	))

	start := time.Now()
	res, err := e.inner.Execute(ctx, task)
	fields := logger.Fields(
		logger.FieldAttempt, task.Attempt,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)

	switch {
	case err != nil:
		fields[logger.FieldError] = err.Error()
		log.Error("attempt errored", fields)
	case res.Status == coordinator.StatusSucceeded:
		fields[logger.FieldTokensUsed] = res.TokensUsed
		log.Debug("attempt finished", fields)
	default:
		fields[logger.FieldStatus] = string(res.Status)
		fields[logger.FieldReason] = res.Reason
		log.Warn("attempt finished", fields)
	}
	return res, err
}
