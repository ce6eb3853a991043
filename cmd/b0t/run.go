package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/internal/engine"
	"github.com/seanmmay/b0t-sub000/internal/streaming"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

type runOptions struct {
	workflowID  string
	file        string
	userID      string
	triggerType string
	triggerData string
	follow      bool
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a stored workflow (--workflow) or a workflow file (--file) and record the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (opts.workflowID == "") == (opts.file == "") {
				return errors.New("exactly one of --workflow or --file is required")
			}
			triggerData, err := parseTriggerData(opts.triggerData)
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if opts.follow {
					stop, err := followEvents(ctx, a, cmd.ErrOrStderr())
					if err != nil {
						return err
					}
					defer stop()
				}

				var res schema.ExecutionResult
				if opts.workflowID != "" {
					res = a.executor.ExecuteWorkflow(ctx, opts.workflowID, opts.userID, opts.triggerType, triggerData)
				} else {
					wf, err := loadWorkflowFile(opts.file)
					if err != nil {
						return err
					}
					res = a.executor.ExecuteWorkflowConfig(ctx, wf.Config(), opts.userID, triggerData,
						engine.Persist(true),
						engine.Validate(a.validator),
						engine.TriggerType(opts.triggerType),
					)
				}
				return reportResult(cmd, res)
			})
		},
	}

	cmd.Flags().StringVar(&opts.workflowID, "workflow", "", "ID of a stored workflow")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "workflow file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user whose credentials the run uses")
	cmd.Flags().StringVar(&opts.triggerType, "trigger", schema.TriggerManual, "trigger type recorded on the run")
	cmd.Flags().StringVar(&opts.triggerData, "trigger-data", "", "trigger payload as a JSON object")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "print step events to stderr as they happen")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newDryRunCmd(flags *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Run a workflow file without recording anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wf, err := loadWorkflowFile(opts.file)
			if err != nil {
				return err
			}
			triggerData, err := parseTriggerData(opts.triggerData)
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				res := a.executor.ExecuteWorkflowConfig(ctx, wf.Config(), opts.userID, triggerData,
					engine.Validate(a.validator))
				return reportResult(cmd, res)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "workflow file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user whose credentials the run uses")
	cmd.Flags().StringVar(&opts.triggerData, "trigger-data", "", "trigger payload as a JSON object")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// followEvents prints every run event published in this process until the
// returned stop func is called. stop waits for the printer to drain.
func followEvents(ctx context.Context, a *app, w io.Writer) (stop func(), err error) {
	ch, cancel, err := a.events.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			step := ev.StepID
			if step == "" {
				step = "-"
			}
			fmt.Fprintf(w, "%3d  %-20s %-20s %s\n", ev.Sequence, ev.Type, step, ev.Payload)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// reportResult prints res and turns a failed run into a non-zero exit.
func reportResult(cmd *cobra.Command, res schema.ExecutionResult) error {
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		if res.ErrorStep != "" {
			return fmt.Errorf("run failed at step %s: %s", res.ErrorStep, res.Error)
		}
		return fmt.Errorf("run failed: %s", res.Error)
	}
	return nil
}
