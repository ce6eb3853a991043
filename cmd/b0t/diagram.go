package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/internal/diagram"
	"github.com/seanmmay/b0t-sub000/internal/store"
)

type diagramOptions struct {
	file       string
	workflowID string
	runID      string
	format     string
	out        string
}

func newDiagramCmd(flags *rootFlags) *cobra.Command {
	opts := &diagramOptions{}

	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Draw a workflow file, a stored workflow, or a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.file == "" && opts.workflowID == "" && opts.runID == "" {
				return errors.New("one of --file, --workflow or --run is required")
			}
			if opts.file != "" {
				wf, err := loadWorkflowFile(opts.file)
				if err != nil {
					return err
				}
				return renderDiagram(cmd, opts, diagram.Build(wf.Name, wf.Steps, nil))
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				var events []*store.RunEvent
				workflowID := opts.workflowID
				if opts.runID != "" {
					run, err := a.store.GetRun(ctx, opts.runID)
					if err != nil {
						return err
					}
					if workflowID == "" {
						workflowID = run.WorkflowID
					}
					if workflowID == "" {
						return fmt.Errorf("run %s was not started from a stored workflow", opts.runID)
					}
					if events, err = a.store.ListRunEvents(ctx, opts.runID); err != nil {
						return err
					}
				}
				wf, err := a.store.GetWorkflow(ctx, workflowID)
				if err != nil {
					return err
				}
				return renderDiagram(cmd, opts, diagram.Build(wf.Name, wf.Config.Steps, events))
			})
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "workflow file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.workflowID, "workflow", "", "stored workflow ID")
	cmd.Flags().StringVar(&opts.runID, "run", "", "overlay the outcome of this run")
	cmd.Flags().StringVar(&opts.format, "format", "ascii", "ascii, mermaid, png or svg")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write to this file instead of stdout (required for png)")

	return cmd
}

func renderDiagram(cmd *cobra.Command, opts *diagramOptions, model *diagram.DiagramModel) error {
	var data []byte
	switch opts.format {
	case "ascii":
		data = []byte(diagram.RenderASCII(model))
	case "mermaid":
		data = []byte(diagram.RenderMermaid(model))
	case "png", "svg":
		if opts.format == "png" && opts.out == "" {
			return errors.New("--out is required for png")
		}
		var err error
		data, err = diagram.RenderImage(cmd.Context(), model, diagram.ImageFormat(opts.format))
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	if opts.out == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(opts.out, data, 0o644)
}
