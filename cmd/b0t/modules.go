package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seanmmay/b0t-sub000/internal/modules"
)

func newModulesCmd(_ *rootFlags) *cobra.Command {
	var (
		prefix     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List built-in module paths and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := modules.NewBuiltinRegistry(modules.BuiltinConfig{})
			if err != nil {
				return err
			}
			var infos []modules.ModuleInfo
			for _, m := range reg.List() {
				if strings.HasPrefix(m.Path, strings.ToLower(prefix)) {
					infos = append(infos, m)
				}
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tSTYLE\tPARAMETERS\tDESCRIPTION")
			for _, m := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Path, m.Style, strings.Join(m.Parameters, ","), m.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only paths starting with this prefix")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
