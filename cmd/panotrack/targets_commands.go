package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"panotrack/internal/api"
)

func newTargetsCommand(ctx *commandContext) *cobra.Command {
	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "Manage apprise notification targets",
	}

	targetsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List notification targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				targets, err := b.Targets(cmd.Context())
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), targets); done {
					return err
				}
				out := cmd.OutOrStdout()
				if len(targets) == 0 {
					fmt.Fprintln(out, "No notification targets")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"ID", "URL", "Added"}, targetRows(targets), []columnAlignment{alignRight}))
				return nil
			})
		},
	})

	targetsCmd.AddCommand(&cobra.Command{
		Use:   "add <apprise-url>",
		Short: "Register an apprise URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				target, err := b.AddTarget(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), target); done {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added target %d\n", target.ID)
				return nil
			})
		},
	})

	targetsCmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a notification target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				if err := b.RemoveTarget(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed target %d\n", id)
				return nil
			})
		},
	})

	return targetsCmd
}

func targetRows(targets []api.NotificationTarget) [][]string {
	rows := make([][]string, 0, len(targets))
	for _, target := range targets {
		rows = append(rows, []string{strconv.FormatInt(target.ID, 10), truncate(target.AppriseURL, 60), relativeTime(target.CreatedAt)})
	}
	return rows
}
