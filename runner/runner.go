package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/dag"
	"github.com/kbukum/taskgraph/errors"
	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/resilience"
)

// Config controls how a Runner executes tasks.
type Config struct {
	// WorktreeRoot, if set, gives every task its own directory
	// <root>/<task id> to run in.
	WorktreeRoot string `yaml:"worktree_root" mapstructure:"worktree_root" json:"worktreeRoot,omitempty"`
	// StateDir, if set and no store is configured, receives a snapshot
	// after every scheduling decision.
	StateDir string `yaml:"state_dir" mapstructure:"state_dir" json:"stateDir,omitempty"`
	// Retry is the per-task retry policy. One attempt by default.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry" json:"retry"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig sets the runner configuration.
func WithConfig(cfg Config) Option {
	return func(r *Runner) { r.cfg = cfg }
}

// WithSnapshotStore saves snapshots to store instead of Config.StateDir.
func WithSnapshotStore(store coordinator.SnapshotStore) Option {
	return func(r *Runner) { r.store = store }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

type completion struct {
	id     string
	result Result
	err    error
}

// Runner executes the tasks of one Coordinator.
type Runner struct {
	mu    sync.RWMutex
	coord *coordinator.Coordinator

	tasks map[string]dag.TaskRecord
	exec  Executor
	cfg   Config
	store coordinator.SnapshotStore
	log   *logger.Logger

	started bool
	done    bool
	runErr  error
}

// New creates a Runner for coord. tasks supplies the command and metadata
// of each task id. exec is wrapped with retry, tracing and logging.
func New(coord *coordinator.Coordinator, tasks []dag.TaskRecord, exec Executor, opts ...Option) *Runner {
	r := &Runner{
		coord: coord,
		tasks: make(map[string]dag.TaskRecord, len(tasks)),
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("runner").WithRun(coord.RunID())
	if r.store == nil && r.cfg.StateDir != "" {
		r.store = coordinator.DirStore{Dir: r.cfg.StateDir}
	}

	for _, t := range tasks {
		if _, dup := r.tasks[t.ID]; !dup {
			r.tasks[t.ID] = t
		}
	}

	exec = WithLogging(exec, r.log)
	exec = WithTracing(exec)
	if r.cfg.Retry.MaxAttempts > 1 {
		exec = WithRetry(exec, r.cfg.Retry, r.log)
	}
	r.exec = exec
	return r
}

// Run executes tasks until every task is settled, the run cannot make
// progress or ctx is canceled. Task failures are not errors; they show up in
// the summary. Run returns a BUDGET_EXHAUSTED error when the token budget
// stops the run with tasks still queued, RUN_STALLED when nothing can start
// for any other reason, and ctx.Err() after cancellation. In-flight tasks
// are always waited for and reported before Run returns.
func (r *Runner) Run(ctx context.Context) (coordinator.RunSummary, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return coordinator.RunSummary{}, errors.Validation("runner has already been started")
	}
	r.started = true
	dec := r.coord.InitialSchedule()
	r.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, r.coord.RunID())

	r.log.Info("run started", logger.Fields("tasks", r.coord.Graph().Len()))

	results := make(chan completion)
	inflight := 0
	canceled := false

	for {
		r.saveSnapshot(ctx)

		if !canceled {
			for _, id := range dec.ToStart {
				r.start(ctx, id, results)
				inflight++
			}
		}

		if inflight == 0 {
			if !canceled && len(dec.ToStart) == 0 && len(dec.ToSkip) > 0 && !dec.AllTerminal {
				r.mu.Lock()
				dec = r.coord.Reschedule()
				r.mu.Unlock()
				continue
			}
			break
		}

		select {
		case c := <-results:
			inflight--
			dec = r.complete(ctx, c)
		case <-ctx.Done():
			if !canceled {
				canceled = true
				r.log.Warn("run canceled, waiting for running tasks", logger.Fields(logger.FieldRunning, inflight))
			}
			c := <-results
			inflight--
			dec = r.complete(ctx, c)
		}
	}

	if canceled {
		dec = r.cancelQueued()
	}
	err := r.finish(ctx, dec, canceled)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	r.saveSnapshot(context.WithoutCancel(ctx))
	return r.Summary(), err
}

func (r *Runner) start(ctx context.Context, id string, results chan<- completion) {
	rec := r.tasks[id]
	worktree := r.worktreePath(id)

	r.mu.Lock()
	r.coord.MarkStarted(id, worktree)
	entry, _ := r.coord.Entry(id)
	r.mu.Unlock()

	task := Task{
		ID:             id,
		HumanKey:       entry.HumanKey,
		Command:        rec.Command,
		RunID:          r.coord.RunID(),
		WorktreePath:   worktree,
		IdempotencyKey: entry.IdempotencyKey,
		Attempt:        1,
		Metadata:       rec.Metadata,
	}

	go func() {
		if worktree != "" {
			if err := os.MkdirAll(worktree, 0o755); err != nil {
				results <- completion{id: id, err: errors.Storage("create worktree", err)}
				return
			}
		}
		res, err := r.exec.Execute(ctx, task)
		results <- completion{id: id, result: res, err: err}
	}()
}

func (r *Runner) complete(ctx context.Context, c completion) coordinator.SchedulingDecision {
	status, details := c.result.Status, coordinator.CompletionDetails{
		Reason:     c.result.Reason,
		TokensUsed: c.result.TokensUsed,
	}
	switch {
	case c.err != nil && ctx.Err() != nil:
		status, details.Reason = coordinator.StatusCanceled, "canceled"
	case c.err != nil:
		status, details.Reason = coordinator.StatusFailed, executorErrorReason(c.err)
	case !status.Valid():
		status, details.Reason = coordinator.StatusFailed, fmt.Sprintf("invalid_status:%s", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	dec, err := r.coord.OnChildComplete(c.id, status, details)
	if err != nil {
		// status was checked above.
		r.log.Error("completion rejected", logger.ErrorFields("on_child_complete", err))
	}
	return dec
}

// cancelQueued reports every task that never started as canceled.
func (r *Runner) cancelQueued() coordinator.SchedulingDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	dec := r.coord.Reschedule()
	for _, e := range r.coord.State().Queued {
		if cur, _ := r.coord.Entry(e.ID); cur.State != coordinator.StateQueued {
			continue
		}
		dec, _ = r.coord.OnChildComplete(e.ID, coordinator.StatusCanceled, coordinator.CompletionDetails{Reason: "run_canceled"})
	}
	return dec
}

func (r *Runner) finish(ctx context.Context, dec coordinator.SchedulingDecision, canceled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true

	summary := r.coord.RunSummary()
	fields := logger.Fields(
		"succeeded", summary.Children.Succeeded,
		"failed", summary.Children.Failed,
		"canceled", summary.Children.Canceled,
		"skipped", summary.Children.Skipped,
		logger.FieldQueued, summary.Children.Queued,
		"wall_time_ms", summary.WallTimeMs,
		"speedup", summary.SpeedupRatio,
	)

	switch {
	case canceled:
		r.runErr = ctx.Err()
	case dec.AllTerminal || r.coord.IsComplete():
		r.runErr = nil
	case r.coord.BudgetExceeded():
		r.runErr = errors.BudgetExhausted(r.coord.BudgetUsed(), *r.coord.Config().CostBudget, summary.Children.Queued)
	default:
		r.runErr = errors.RunStalled(summary.Children.Queued)
	}

	if r.runErr != nil {
		fields[logger.FieldError] = r.runErr.Error()
		r.log.Warn("run halted", fields)
	} else {
		r.log.Info("run finished", fields)
	}
	return r.runErr
}

func (r *Runner) saveSnapshot(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.mu.RLock()
	snap := r.coord.Snapshot()
	r.mu.RUnlock()
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		r.log.Warn("writing snapshot failed", logger.ErrorFields("write_snapshot", err))
	}
}

func (r *Runner) worktreePath(id string) string {
	if r.cfg.WorktreeRoot == "" {
		return ""
	}
	return filepath.Join(r.cfg.WorktreeRoot, sanitizeID(id))
}

var pathReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

func sanitizeID(id string) string {
	return pathReplacer.Replace(id)
}

func executorErrorReason(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return "executor_error:" + strings.ToLower(string(appErr.Code))
	}
	return "executor_error"
}

// RunID returns the run identifier.
func (r *Runner) RunID() string { return r.coord.RunID() }

// Summary returns the current run summary.
func (r *Runner) Summary() coordinator.RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coord.RunSummary()
}

// State returns the current task states.
func (r *Runner) State() coordinator.StateSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coord.State()
}

// Events returns the event log so far.
func (r *Runner) Events() []coordinator.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coord.Events()
}

// CheckHealth reports the run's health. Failed tasks or an exhausted budget
// degrade it and a halted run is down.
func (r *Runner) CheckHealth(_ context.Context) observability.Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.coord.RunSummary()
	h := observability.Health{
		Name:   "runner",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"run_id":  s.RunID,
			"running": fmt.Sprint(s.Children.Running),
			"queued":  fmt.Sprint(s.Children.Queued),
			"failed":  fmt.Sprint(s.Children.Failed),
		},
	}
	switch {
	case r.done && r.runErr != nil:
		h.Status = observability.HealthStatusDown
		h.Message = r.runErr.Error()
	case s.Children.Failed > 0 || s.Children.Canceled > 0 || s.Budget.Exceeded:
		h.Status = observability.HealthStatusDegraded
	}
	return h
}
