package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/internal/modules"
	"github.com/seanmmay/b0t-sub000/internal/validation"
)

func newValidateCmd(_ *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a workflow file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wf, err := loadWorkflowFile(file)
			if err != nil {
				return err
			}
			reg, err := modules.NewBuiltinRegistry(modules.BuiltinConfig{})
			if err != nil {
				return err
			}
			v, err := validation.NewWorkflowValidator(reg)
			if err != nil {
				return err
			}

			cfg := wf.Config()
			result := v.Validate(&cfg)
			out := cmd.OutOrStdout()
			if result.Valid() {
				_, err := fmt.Fprintf(out, "%s: ok (%d top-level steps)\n", file, len(cfg.Steps))
				return err
			}
			for _, issue := range result.Issues {
				fmt.Fprintln(out, issue.String())
			}
			return fmt.Errorf("%s: %d validation issue(s)", file, len(result.Issues))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "workflow file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
