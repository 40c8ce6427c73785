package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/dag"
)

type schedulerFlags struct {
	parallel       bool
	maxConcurrency int
	budget         int64
	runID          string
}

func (f *schedulerFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "run independent tasks concurrently")
	cmd.Flags().IntVar(&f.maxConcurrency, "max-concurrency", 0, "maximum concurrent tasks when --parallel is set")
	cmd.Flags().Int64Var(&f.budget, "budget", 0, "token budget for the run")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "run identifier (default from task file or random)")
}

// apply overrides cfg with the flags that were set on cmd.
func (f *schedulerFlags) apply(cmd *cobra.Command, cfg *coordinator.Config, fileRunID string) {
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.ParallelEnabled = f.parallel
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrency = f.maxConcurrency
	}
	if flags.Changed("budget") {
		cfg.CostBudget = coordinator.Budget(f.budget)
	}
	switch {
	case flags.Changed("run-id"):
		cfg.RunID = f.runID
	case cfg.RunID == "":
		cfg.RunID = fileRunID
	}
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	flags := &schedulerFlags{}
	cmd := &cobra.Command{
		Use:   "plan FILE",
		Short: "Show execution levels and the first batch of tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			tf, err := dag.LoadTaskFile(args[0])
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg.Scheduler, tf.RunID)

			coord, err := coordinator.New(tf.Tasks, cfg.Scheduler, coordinator.WithLogger(log))
			if err != nil {
				return err
			}
			levels, err := dag.ExecutionLevels(coord.Graph())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %d tasks, max concurrency %d\n",
				coord.RunID(), coord.Graph().Len(), coord.MaxConcurrency())
			for _, msg := range coord.DAGErrors() {
				fmt.Fprintf(out, "  warning: %s\n", msg)
			}
			for i, level := range levels {
				fmt.Fprintf(out, "Level %d: %s\n", i, strings.Join(labels(coord.Graph(), level), ", "))
			}
			first := coord.InitialSchedule()
			fmt.Fprintf(out, "Initial batch: %s\n", strings.Join(labels(coord.Graph(), first.ToStart), ", "))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func labels(g *dag.Graph, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Node(id); ok {
			out = append(out, n.Label())
			continue
		}
		out = append(out, id)
	}
	return out
}
