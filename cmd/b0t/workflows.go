package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/internal/store"
)

func newWorkflowsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Manage stored workflows",
	}
	cmd.AddCommand(newWorkflowsCreateCmd(flags))
	cmd.AddCommand(newWorkflowsListCmd(flags))
	return cmd
}

func newWorkflowsCreateCmd(flags *rootFlags) *cobra.Command {
	var file, userID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Validate a workflow file and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wf, err := loadWorkflowFile(file)
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				cfg := wf.Config()
				if err := a.validator.ValidateConfig(&cfg); err != nil {
					return err
				}

				rec := &store.Workflow{
					ID:             wf.ID,
					UserID:         userID,
					OrganizationID: wf.OrganizationID,
					Name:           wf.Name,
					Config:         cfg,
				}
				if rec.ID == "" {
					rec.ID = uuid.NewString()
				}
				if rec.Name == "" {
					rec.Name = rec.ID
				}
				if wf.Trigger != nil {
					if rec.Trigger, err = json.Marshal(wf.Trigger); err != nil {
						return fmt.Errorf("encode trigger: %w", err)
					}
				}
				if err := a.store.CreateWorkflow(ctx, rec); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "workflow file (YAML or JSON)")
	cmd.Flags().StringVar(&userID, "user", "", "owning user")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newWorkflowsListCmd(flags *rootFlags) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				wfs, err := a.store.ListWorkflows(ctx, userID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tRUNS\tLAST RUN")
				for _, wf := range wfs {
					last := "-"
					if wf.LastRun != nil {
						last = fmt.Sprintf("%s (%s)", wf.LastRun.Format("2006-01-02 15:04:05"), wf.LastRunStatus)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", wf.ID, wf.Name, wf.Status, wf.RunCount, last)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owning user")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newOrgsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "Manage organizations that own workflows",
	}

	var name string
	create := &cobra.Command{
		Use:   "create <id>",
		Short: "Create an active organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if name == "" {
					name = args[0]
				}
				return a.store.CreateOrganization(ctx, &store.Organization{ID: args[0], Name: name})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name (default: the id)")

	setStatus := &cobra.Command{
		Use:   "set-status <id> <active|inactive>",
		Short: "Activate or deactivate an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := args[1]
			if status != store.OrganizationStatusActive && status != store.OrganizationStatusInactive {
				return fmt.Errorf("status must be %s or %s", store.OrganizationStatusActive, store.OrganizationStatusInactive)
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return a.store.SetOrganizationStatus(ctx, args[0], status)
			})
		},
	}

	cmd.AddCommand(create, setStatus)
	return cmd
}
