package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

func newRunsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}

	get := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				run, err := a.store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), run)
			})
		},
	}

	events := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the step events of a run in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				evs, err := a.store.ListRunEvents(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), evs)
			})
		},
	}

	var (
		filter store.RunFilter
		status string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				st := schema.RunStatus(status)
				filter.Status = &st
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				runs, err := a.store.ListRuns(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), runs)
			})
		},
	}
	list.Flags().StringVar(&filter.WorkflowID, "workflow", "", "only runs of this workflow")
	list.Flags().StringVar(&filter.UserID, "user", "", "only runs of this user")
	list.Flags().StringVar(&status, "status", "", "only runs in this status: running, success, error")
	list.Flags().IntVar(&filter.Limit, "limit", 20, "maximum runs shown")

	cmd.AddCommand(get, events, list)
	return cmd
}
