package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCredentialsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage encrypted per-user platform credentials",
	}

	var userID string
	cmd.PersistentFlags().StringVar(&userID, "user", "", "credential owner")
	_ = cmd.MarkPersistentFlagRequired("user")

	set := &cobra.Command{
		Use:   "set <platform> [value]",
		Short: "Store a credential; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no credential value on stdin")
				}
				value = strings.TrimRight(line, "\r\n")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				creds, err := a.requireCredentials()
				if err != nil {
					return err
				}
				return creds.Store(ctx, userID, args[0], value)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <platform>",
		Short: "Remove a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				creds, err := a.requireCredentials()
				if err != nil {
					return err
				}
				return creds.Delete(ctx, userID, args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the platforms a user has credentials for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				creds, err := a.requireCredentials()
				if err != nil {
					return err
				}
				platforms, err := creds.Platforms(ctx, userID)
				if err != nil {
					return err
				}
				for _, p := range platforms {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(set, del, list)
	return cmd
}
