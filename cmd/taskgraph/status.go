package main

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/redis"
)

var errNoSnapshotStore = stderrors.New("no snapshot store: pass --state-dir, set runner.state_dir or enable redis")

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var stateDir, runID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last saved run snapshot",
		Long: `Status prints a saved run snapshot as JSON. Snapshots are read from
--state-dir when given, otherwise from Redis or runner.state_dir as
configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore, err := statusStore(ctx, opts, cmd.Flags().Changed("state-dir"), stateDir)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, err := store.LoadSnapshot(ctx, runID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "directory holding the run snapshot")
	cmd.Flags().StringVar(&runID, "run-id", "", "run to show (default the latest)")
	return cmd
}

func statusStore(ctx context.Context, opts *rootOptions, explicitDir bool, dir string) (coordinator.SnapshotStore, func(), error) {
	noop := func() {}
	if explicitDir {
		return coordinator.DirStore{Dir: dir}, noop, nil
	}

	cfg, log, err := opts.load()
	if err != nil {
		return nil, noop, err
	}
	var rc *redis.Component
	if cfg.Redis.Enabled {
		if rc, err = redis.NewComponent(cfg.Redis, log); err != nil {
			return nil, noop, err
		}
		if err := rc.Start(ctx); err != nil {
			_ = rc.Stop(ctx)
			return nil, noop, err
		}
		noop = func() { _ = rc.Stop(context.WithoutCancel(ctx)) }
	}
	store := cfg.snapshotStore(rc)
	if store == nil {
		return nil, noop, errNoSnapshotStore
	}
	return store, noop, nil
}
