package coordinator

import (
	"context"
	"math"
	"time"

	"github.com/kbukum/taskgraph/dag"
	"github.com/kbukum/taskgraph/errors"
	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
)

// Coordinator tracks task lifecycle for one run and decides what to start.
type Coordinator struct {
	cfg            Config
	maxConcurrency int
	graph          *dag.Graph
	dagErrors      []string
	entries        map[string]*TaskEntry

	events         []Event
	budgetUsed     int64
	budgetExceeded bool
	maxObserved    int
	startTime      time.Time

	now     func() time.Time
	log     *logger.Logger
	metrics *observability.SchedulerMetrics
	sinks   []EventSink
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMetrics records scheduler metrics on m.
func WithMetrics(m *observability.SchedulerMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithEventSink forwards every event to s after it is logged.
func WithEventSink(s EventSink) Option {
	return func(c *Coordinator) { c.sinks = append(c.sinks, s) }
}

// WithClock replaces time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a Coordinator over tasks. Unknown blocker references are kept
// and reported in the run summary. A dependency cycle is fatal and returns
// an error with code CYCLE_DETECTED.
func New(tasks []dag.TaskRecord, cfg Config, opts ...Option) (*Coordinator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, dagErrors := dag.Build(tasks)
	if res := dag.DetectCycles(g); res.HasCycles {
		return nil, errors.CycleDetected(res.CyclePath, dag.FormatCyclePath(res.CyclePath))
	}

	c := &Coordinator{
		cfg:            cfg,
		maxConcurrency: cfg.EffectiveConcurrency(),
		graph:          g,
		dagErrors:      dagErrors,
		entries:        make(map[string]*TaskEntry, g.Len()),
		now:            time.Now,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("coordinator").WithRun(cfg.RunID)
	c.startTime = c.now()

	for _, n := range g.Nodes() {
		c.entries[n.ID] = &TaskEntry{
			ID:             n.ID,
			HumanKey:       n.HumanKey,
			State:          StateQueued,
			IdempotencyKey: cfg.RunID + ":" + n.ID,
		}
	}

	for _, e := range dagErrors {
		c.log.Warn("task graph reference error", logger.Fields(logger.FieldError, e))
	}
	c.log.Info("coordinator ready", logger.Fields(
		"tasks", g.Len(),
		"roots", len(g.RootIDs),
		logger.FieldConcurrency, c.maxConcurrency,
		"parallel", cfg.ParallelEnabled,
	))
	return c, nil
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// RunID returns the run identifier.
func (c *Coordinator) RunID() string { return c.cfg.RunID }

// MaxConcurrency returns the enforced concurrency limit.
func (c *Coordinator) MaxConcurrency() int { return c.maxConcurrency }

// Graph returns the task graph.
func (c *Coordinator) Graph() *dag.Graph { return c.graph }

// DAGErrors returns the non-fatal reference errors found at construction.
func (c *Coordinator) DAGErrors() []string {
	return append([]string(nil), c.dagErrors...)
}

// BudgetUsed returns the tokens consumed so far.
func (c *Coordinator) BudgetUsed() int64 { return c.budgetUsed }

// BudgetExceeded reports whether the budget has tripped.
func (c *Coordinator) BudgetExceeded() bool { return c.budgetExceeded }

// Entry returns a copy of the entry for id.
func (c *Coordinator) Entry(id string) (TaskEntry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return TaskEntry{}, false
	}
	return *e, true
}

// Events returns a copy of the event log.
func (c *Coordinator) Events() []Event {
	return append([]Event(nil), c.events...)
}

// InitialSchedule computes the first scheduling decision.
func (c *Coordinator) InitialSchedule() SchedulingDecision {
	return c.recompute()
}

// Reschedule recomputes the decision without a new completion. Skips
// propagate one level per recompute, so a caller with nothing running
// calls this after a decision that skipped tasks.
func (c *Coordinator) Reschedule() SchedulingDecision {
	return c.recompute()
}

// MarkStarted records that the caller started task id in worktreePath.
// Unknown ids and tasks that are no longer queued are ignored.
func (c *Coordinator) MarkStarted(id, worktreePath string) {
	e, ok := c.entries[id]
	if !ok {
		c.log.Debug("ignoring start of unknown task", logger.Fields(logger.FieldTaskID, id))
		return
	}
	if e.State != StateQueued {
		c.log.Warn("ignoring start of task that is not queued", logger.Fields(
			logger.FieldTaskID, id,
			logger.FieldState, e.State.String(),
		))
		return
	}

	now := c.now()
	e.State = StateRunning
	e.StartedAt = &now
	e.WorktreePath = worktreePath

	if running := c.count(StateRunning); running > c.maxObserved {
		c.maxObserved = running
	}

	c.metrics.RecordStarted(context.Background(), c.cfg.RunID)
	c.log.WithTask(e.ID, e.HumanKey).Info("task started", logger.Fields(logger.FieldWorktree, worktreePath))
	c.emit(Event{
		Type:         EventChildStarted,
		TaskID:       e.ID,
		HumanKey:     e.HumanKey,
		WorktreePath: worktreePath,
	})
}

// OnChildComplete records the result of task id and returns the next
// decision. Unknown ids and tasks already in a terminal state leave the
// run unchanged. status must be succeeded, failed or canceled.
func (c *Coordinator) OnChildComplete(id string, status CompletionStatus, details CompletionDetails) (SchedulingDecision, error) {
	if !status.Valid() {
		return SchedulingDecision{}, errors.InvalidStatus(id, string(status))
	}

	e, ok := c.entries[id]
	switch {
	case !ok:
		c.log.Debug("ignoring completion of unknown task", logger.Fields(logger.FieldTaskID, id))
		return c.recompute(), nil
	case e.State.IsTerminal():
		c.log.Warn("ignoring completion of settled task", logger.Fields(
			logger.FieldTaskID, id,
			logger.FieldState, e.State.String(),
		))
		return c.recompute(), nil
	}

	wasRunning := e.State == StateRunning
	now := c.now()
	e.State = TaskState(status)
	e.CompletedAt = &now
	e.Reason = details.Reason
	// Negative usage is clamped so budgetUsed never decreases.
	tokens := max(0, details.TokensUsed)
	e.TokensUsed = tokens
	c.budgetUsed += tokens

	var durationMs int64
	if d, ok := e.Duration(); ok {
		durationMs = d.Milliseconds()
	}

	c.metrics.RecordCompleted(context.Background(), c.cfg.RunID, string(status), wasRunning, tokens)
	fields := logger.Fields(
		logger.FieldStatus, string(status),
		logger.FieldDuration, durationMs,
		logger.FieldTokensUsed, tokens,
		logger.FieldBudgetUsed, c.budgetUsed,
	)
	if details.Reason != "" {
		fields[logger.FieldReason] = details.Reason
	}
	taskLog := c.log.WithTask(e.ID, e.HumanKey)
	if status == StatusSucceeded {
		taskLog.Info("task completed", fields)
	} else {
		taskLog.Warn("task completed", fields)
	}

	c.emit(Event{
		Type:       EventChildCompleted,
		TaskID:     e.ID,
		HumanKey:   e.HumanKey,
		Status:     string(status),
		Reason:     details.Reason,
		DurationMs: durationMs,
		TokensUsed: tokens,
	})

	return c.recompute(), nil
}

// State returns copies of all entries grouped by state.
func (c *Coordinator) State() StateSnapshot {
	var s StateSnapshot
	for _, id := range c.graph.IDs() {
		e := *c.entries[id]
		switch e.State {
		case StateQueued:
			s.Queued = append(s.Queued, e)
		case StateRunning:
			s.Running = append(s.Running, e)
		case StateSucceeded:
			s.Succeeded = append(s.Succeeded, e)
		case StateFailed:
			s.Failed = append(s.Failed, e)
		case StateCanceled:
			s.Canceled = append(s.Canceled, e)
		case StateSkipped:
			s.Skipped = append(s.Skipped, e)
		}
	}
	return s
}

// IsComplete reports whether no task is queued or running.
func (c *Coordinator) IsComplete() bool {
	for _, e := range c.entries {
		if e.State == StateQueued || e.State == StateRunning {
			return false
		}
	}
	return true
}

// RunSummary reports progress, parallelism and budget for the run so far.
func (c *Coordinator) RunSummary() RunSummary {
	wall := c.now().Sub(c.startTime).Milliseconds()

	var total int64
	for _, e := range c.entries {
		if d, ok := e.Duration(); ok {
			total += d.Milliseconds()
		}
	}

	speedup := 1.0
	if wall > 0 {
		speedup = math.Round(float64(total)/float64(wall)*100) / 100
	}

	return RunSummary{
		RunID:                  c.cfg.RunID,
		ParallelEnabled:        c.cfg.ParallelEnabled,
		MaxConcurrencyConfig:   c.cfg.MaxConcurrency,
		WallTimeMs:             wall,
		TotalChildDurationMs:   total,
		MaxConcurrencyObserved: c.maxObserved,
		SpeedupRatio:           speedup,
		Children:               c.childCounts(),
		Budget: BudgetSummary{
			Configured: c.cfg.CostBudget,
			Used:       c.budgetUsed,
			Exceeded:   c.budgetExceeded,
		},
		Events:    c.Events(),
		DAGErrors: c.DAGErrors(),
	}
}

// recompute applies failure propagation and budget checks, then picks the
// tasks to start from the runnable set.
func (c *Coordinator) recompute() SchedulingDecision {
	began := time.Now()
	defer func() {
		c.metrics.RecordRecompute(context.Background(), c.cfg.RunID, time.Since(began))
	}()

	outcomes := make(dag.Outcomes, len(c.entries))
	running := make(dag.IDSet)
	for id, e := range c.entries {
		if o, ok := e.State.outcome(); ok {
			outcomes[id] = o
		} else if e.State == StateRunning {
			running[id] = struct{}{}
		}
	}

	rs := dag.ComputeRunnableSet(c.graph, outcomes, running)

	toSkip := make([]string, 0, len(rs.Terminal))
	for _, t := range rs.Terminal {
		e := c.entries[t.ID]
		if e.State != StateQueued {
			continue
		}
		now := c.now()
		e.State = StateSkipped
		e.CompletedAt = &now
		e.Reason = t.Reason
		toSkip = append(toSkip, t.ID)

		c.log.WithTask(e.ID, e.HumanKey).Info("task skipped", logger.Fields(logger.FieldReason, t.Reason))
		c.emit(Event{
			Type:     EventChildSkipped,
			TaskID:   e.ID,
			HumanKey: e.HumanKey,
			Reason:   t.Reason,
		})
	}
	c.metrics.RecordSkipped(context.Background(), c.cfg.RunID, len(toSkip))

	runningCount := len(running)
	availableSlots := max(0, c.maxConcurrency-runningCount)

	toStart := []string{}
	if c.checkBudget() {
		n := min(availableSlots, len(rs.Runnable))
		toStart = append(toStart, rs.Runnable[:n]...)
	}

	d := SchedulingDecision{
		ToStart:     toStart,
		ToSkip:      toSkip,
		AllTerminal: c.IsComplete() && len(toStart) == 0,
		Summary:     c.counts(),
	}
	c.log.Debug("schedule recomputed", logger.Fields(
		logger.FieldToStart, d.ToStart,
		logger.FieldRunning, d.Summary.Running,
		logger.FieldQueued, d.Summary.Queued,
		"slots", availableSlots,
	))
	return d
}

// checkBudget trips the budget once usage reaches it and reports whether
// new starts are allowed.
func (c *Coordinator) checkBudget() bool {
	if c.cfg.CostBudget == nil {
		return true
	}
	if c.budgetUsed >= *c.cfg.CostBudget && !c.budgetExceeded {
		c.budgetExceeded = true
		c.metrics.RecordBudgetExceeded(context.Background(), c.cfg.RunID)
		c.log.Warn("token budget exceeded, no further tasks will start", logger.Fields(
			logger.FieldBudgetUsed, c.budgetUsed,
			logger.FieldBudget, *c.cfg.CostBudget,
		))
		c.emit(Event{
			Type:       EventBudgetExceeded,
			BudgetUsed: c.budgetUsed,
			CostBudget: *c.cfg.CostBudget,
		})
	}
	return !c.budgetExceeded
}

func (c *Coordinator) emit(e Event) {
	e.RunID = c.cfg.RunID
	e.Timestamp = c.now()
	c.events = append(c.events, e)
	for _, s := range c.sinks {
		s.Publish(e)
	}
}

func (c *Coordinator) count(state TaskState) int {
	n := 0
	for _, e := range c.entries {
		if e.State == state {
			n++
		}
	}
	return n
}

func (c *Coordinator) counts() Counts {
	var s Counts
	for _, e := range c.entries {
		switch e.State {
		case StateRunning:
			s.Running++
		case StateQueued:
			s.Queued++
		case StateSucceeded:
			s.Completed++
		case StateFailed, StateCanceled:
			s.Failed++
		case StateSkipped:
			s.Skipped++
		}
	}
	return s
}

func (c *Coordinator) childCounts() ChildCounts {
	cc := ChildCounts{Total: len(c.entries)}
	for _, e := range c.entries {
		switch e.State {
		case StateQueued:
			cc.Queued++
		case StateRunning:
			cc.Running++
		case StateSucceeded:
			cc.Succeeded++
		case StateFailed:
			cc.Failed++
		case StateCanceled:
			cc.Canceled++
		case StateSkipped:
			cc.Skipped++
		}
	}
	return cc
}
