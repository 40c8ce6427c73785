package main

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskgraph/dag"
)

var errInvalidGraph = stderrors.New("task graph is invalid")

func newValidateCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a task file for unknown blockers and cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := dag.LoadTaskFile(args[0])
			if err != nil {
				return err
			}

			res := dag.ValidateDependencies(tf.Tasks)
			out := cmd.OutOrStdout()
			if !res.Valid {
				for _, msg := range res.Errors {
					fmt.Fprintf(out, "  ✗ %s\n", msg)
				}
				return errInvalidGraph
			}
			fmt.Fprintf(out, "✓ %d tasks, no dependency errors\n", len(tf.Tasks))
			return nil
		},
	}
}
