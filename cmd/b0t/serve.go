package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/pkg/mcp"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				srv := mcp.NewServer(mcp.ServerDeps{
					Runner:    a.executor,
					Runs:      a.store,
					Workflows: a.store,
					Registry:  a.registry,
					Validator: a.validator,
					Logger:    a.logger,
				}, version)

				a.logger.Info("mcp server starting", "modules", a.registry.Count())
				return srv.Serve(ctx)
			})
		},
	}
}
