package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"panotrack/internal/api"
)

func newDirsCommand(ctx *commandContext) *cobra.Command {
	dirsCmd := &cobra.Command{
		Use:     "dirs",
		Aliases: []string{"directories"},
		Short:   "Manage watched import directories",
	}

	dirsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List watched directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				dirs, err := b.Directories(cmd.Context())
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), dirs); done {
					return err
				}
				out := cmd.OutOrStdout()
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No import directories")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Path", "Added"}, directoryRows(dirs), []columnAlignment{alignRight}))
				return nil
			})
		},
	})

	dirsCmd.AddCommand(&cobra.Command{
		Use:   "add <path>",
		Short: "Watch a directory for new clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				dir, err := b.AddDirectory(cmd.Context(), path)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), dir); done {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (id %d)\n", dir.Path, dir.ID)
				return nil
			})
		},
	})

	dirsCmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				dir, err := b.RemoveDirectory(cmd.Context(), id)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), dir); done {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped watching %s\n", dir.Path)
				return nil
			})
		},
	})

	return dirsCmd
}

func directoryRows(dirs []api.ImportDirectory) [][]string {
	rows := make([][]string, 0, len(dirs))
	for _, dir := range dirs {
		rows = append(rows, []string{strconv.FormatInt(dir.ID, 10), dir.Path, relativeTime(dir.CreatedAt)})
	}
	return rows
}
