package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskgraph/component"
	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/dag"
	"github.com/kbukum/taskgraph/kafka"
	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/redis"
	"github.com/kbukum/taskgraph/runner"
	"github.com/kbukum/taskgraph/server"
	"github.com/kbukum/taskgraph/sse"
	"github.com/kbukum/taskgraph/version"
)

type runFlags struct {
	schedulerFlags
	retries      int
	worktreeRoot string
	stateDir     string
	serve        string
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run every task in the file and print the run summary",
		Long: `Run executes each task's command with sh -c, in dependency order. A task
succeeds when its command exits 0. A line "tokens_used=<n>" on stdout reports
token usage against the budget. The run summary is printed as JSON on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			tf, err := dag.LoadTaskFile(args[0])
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg, tf.RunID); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return execute(ctx, cmd, cfg, log, tf)
		},
	}
	flags.schedulerFlags.register(cmd)
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "retry a failed task up to N more times")
	cmd.Flags().StringVar(&flags.worktreeRoot, "worktree-root", "", "give each task its own directory under DIR")
	cmd.Flags().StringVar(&flags.stateDir, "state-dir", "", "write run snapshots to DIR")
	cmd.Flags().StringVar(&flags.serve, "serve", "", "serve run state and events over HTTP on ADDR")
	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *AppConfig, fileRunID string) error {
	f.schedulerFlags.apply(cmd, &cfg.Scheduler, fileRunID)

	flags := cmd.Flags()
	if flags.Changed("retries") {
		cfg.Runner.Retry.MaxAttempts = f.retries + 1
	}
	if flags.Changed("worktree-root") {
		cfg.Runner.WorktreeRoot = f.worktreeRoot
	}
	if flags.Changed("state-dir") {
		cfg.Runner.StateDir = f.stateDir
	}
	if flags.Changed("serve") {
		cfg.Server.Enabled = true
		if err := cfg.Server.SetAddr(f.serve); err != nil {
			return err
		}
	}
	return nil
}

func execute(ctx context.Context, cmd *cobra.Command, cfg *AppConfig, log *logger.Logger, tf *dag.TaskFile) error {
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = version.Short()
	}
	shutdown, err := observability.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("telemetry shutdown failed", logger.ErrorFields("shutdown", err))
		}
	}()

	metrics, err := observability.NewSchedulerMetrics(observability.Meter(appName))
	if err != nil {
		return err
	}

	// Registration order is start order; shutdown runs in reverse so the
	// event stream closes before the server, and the Kafka sink drains
	// after the last event.
	registry := component.NewRegistry(log)
	coordOpts := []coordinator.Option{
		coordinator.WithLogger(log),
		coordinator.WithMetrics(metrics),
	}

	var store *redis.Component
	if cfg.Redis.Enabled {
		if store, err = redis.NewComponent(cfg.Redis, log); err != nil {
			return err
		}
		if err := registry.Register(store); err != nil {
			return err
		}
	}
	if cfg.Kafka.Enabled {
		sink, err := kafka.NewEventSink(cfg.Kafka, log)
		if err != nil {
			return err
		}
		if err := registry.Register(sink); err != nil {
			return err
		}
		coordOpts = append(coordOpts, coordinator.WithEventSink(sink))
	}
	var events *sse.Component
	if cfg.Server.Enabled {
		events = sse.NewComponent(log)
		coordOpts = append(coordOpts, coordinator.WithEventSink(sse.NewEventSink(events.Hub(), log)))
	}

	coord, err := coordinator.New(tf.Tasks, cfg.Scheduler, coordOpts...)
	if err != nil {
		return err
	}
	if cfg.Process.Output == nil {
		cfg.Process.Output = cmd.ErrOrStderr()
	}
	runnerOpts := []runner.Option{runner.WithConfig(cfg.Runner), runner.WithLogger(log)}
	if s := cfg.snapshotStore(store); s != nil {
		runnerOpts = append(runnerOpts, runner.WithSnapshotStore(s))
	}
	r := runner.New(coord, tf.Tasks, runner.NewProcessExecutor(cfg.Process), runnerOpts...)

	if events != nil {
		srv := server.New(cfg.Server, log)
		if err := registry.Register(srv); err != nil {
			return err
		}
		if err := registry.Register(events); err != nil {
			return err
		}
		srv.Register(server.Routes{
			Service:  cfg.Name,
			Version:  version.Short(),
			Run:      r,
			Hub:      events.Hub(),
			Checkers: append([]observability.HealthChecker{r}, registry.Checkers()...),
		})
	}

	defer func() {
		if err := registry.StopAll(context.WithoutCancel(ctx)); err != nil {
			log.Warn("shutdown incomplete", logger.ErrorFields("stop", err))
		}
	}()
	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	summary, runErr := r.Run(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}
	return runErr
}
