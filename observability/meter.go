package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/taskgraph/logger"
)

// InitMeter installs a global meter provider exporting over OTLP HTTP.
// The returned provider should be shut down on exit.
func InitMeter(ctx context.Context, cfg Config, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	log.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricTasksStarted      = "taskgraph.tasks.started"
	MetricTasksCompleted    = "taskgraph.tasks.completed"
	MetricTasksSkipped      = "taskgraph.tasks.skipped"
	MetricTasksRunning      = "taskgraph.tasks.running"
	MetricTokensUsed        = "taskgraph.budget.tokens_used"
	MetricBudgetExceeded    = "taskgraph.budget.exceeded"
	MetricRecomputeDuration = "taskgraph.schedule.recompute.duration"
)

// SchedulerMetrics holds the instruments updated by the coordinator.
// A nil *SchedulerMetrics is valid and records nothing.
type SchedulerMetrics struct {
	tasksStarted      metric.Int64Counter
	tasksCompleted    metric.Int64Counter
	tasksSkipped      metric.Int64Counter
	tasksRunning      metric.Int64UpDownCounter
	tokensUsed        metric.Int64Counter
	budgetExceeded    metric.Int64Counter
	recomputeDuration metric.Float64Histogram
}

// NewSchedulerMetrics creates scheduler instruments on the given meter.
func NewSchedulerMetrics(meter metric.Meter) (*SchedulerMetrics, error) {
	m := &SchedulerMetrics{}
	var err error

	if m.tasksStarted, err = meter.Int64Counter(MetricTasksStarted,
		metric.WithDescription("Tasks moved to running"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksStarted, err)
	}
	if m.tasksCompleted, err = meter.Int64Counter(MetricTasksCompleted,
		metric.WithDescription("Tasks that reached a completion status"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksCompleted, err)
	}
	if m.tasksSkipped, err = meter.Int64Counter(MetricTasksSkipped,
		metric.WithDescription("Tasks skipped because a blocker failed"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksSkipped, err)
	}
	if m.tasksRunning, err = meter.Int64UpDownCounter(MetricTasksRunning,
		metric.WithDescription("Tasks currently running"),
	); err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricTasksRunning, err)
	}
	if m.tokensUsed, err = meter.Int64Counter(MetricTokensUsed,
		metric.WithDescription("Tokens reported by completed tasks"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTokensUsed, err)
	}
	if m.budgetExceeded, err = meter.Int64Counter(MetricBudgetExceeded,
		metric.WithDescription("Runs whose token budget tripped"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricBudgetExceeded, err)
	}
	if m.recomputeDuration, err = meter.Float64Histogram(MetricRecomputeDuration,
		metric.WithDescription("Time spent recomputing the schedule"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRecomputeDuration, err)
	}
	return m, nil
}

func runAttr(runID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("run_id", runID))
}

// RecordStarted counts a task moving to running.
func (m *SchedulerMetrics) RecordStarted(ctx context.Context, runID string) {
	if m == nil {
		return
	}
	m.tasksStarted.Add(ctx, 1, runAttr(runID))
	m.tasksRunning.Add(ctx, 1, runAttr(runID))
}

// RecordCompleted counts a task reaching status. wasRunning reports whether
// the running gauge should be decremented.
func (m *SchedulerMetrics) RecordCompleted(ctx context.Context, runID, status string, wasRunning bool, tokens int64) {
	if m == nil {
		return
	}
	m.tasksCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("status", status),
	))
	if wasRunning {
		m.tasksRunning.Add(ctx, -1, runAttr(runID))
	}
	if tokens > 0 {
		m.tokensUsed.Add(ctx, tokens, runAttr(runID))
	}
}

// RecordSkipped counts tasks skipped in one recompute.
func (m *SchedulerMetrics) RecordSkipped(ctx context.Context, runID string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tasksSkipped.Add(ctx, int64(n), runAttr(runID))
}

// RecordBudgetExceeded counts a budget trip.
func (m *SchedulerMetrics) RecordBudgetExceeded(ctx context.Context, runID string) {
	if m == nil {
		return
	}
	m.budgetExceeded.Add(ctx, 1, runAttr(runID))
}

// RecordRecompute records how long a schedule recompute took.
func (m *SchedulerMetrics) RecordRecompute(ctx context.Context, runID string, d time.Duration) {
	if m == nil {
		return
	}
	m.recomputeDuration.Record(ctx, d.Seconds(), runAttr(runID))
}
