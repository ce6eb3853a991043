package main

import (
	"context"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "b0t",
		Short:         "b0t runs declarative workflows of module calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: ./config.yaml or ~/.b0t/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newDryRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newMigrateCmd(flags))
	cmd.AddCommand(newWorkflowsCmd(flags))
	cmd.AddCommand(newOrgsCmd(flags))
	cmd.AddCommand(newRunsCmd(flags))
	cmd.AddCommand(newCredentialsCmd(flags))
	cmd.AddCommand(newModulesCmd(flags))
	cmd.AddCommand(newDiagramCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// withApp loads config, wires the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	if err := a.store.Migrate(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
