package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"panotrack/internal/api"
	"panotrack/internal/config"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Queue a track import for a 360 clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				job, err := b.Import(cmd.Context(), path, force)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), job); done {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued track import %d for %s\n", job.ID, job.Key)
				printOfflineHint(out, b)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-import even when the file content is already catalogued")
	return cmd
}

func newImagesCommand(ctx *commandContext) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Extract panorama frames for stored tracks",
	}

	imagesCmd.AddCommand(&cobra.Command{
		Use:   "import <track-id>",
		Short: "Queue frame extraction for one track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				job, err := b.ImageImport(cmd.Context(), id)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), job); done {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued image import %d for track %d\n", job.ID, id)
				printOfflineHint(out, b)
				return nil
			})
		},
	})

	imagesCmd.AddCommand(&cobra.Command{
		Use:   "missing",
		Short: "Queue frame extraction for every track without images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				result, err := b.MissingImages(cmd.Context())
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), result); done {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %d image import(s); %d already pending\n", len(result.Enqueued), result.Skipped)
				if len(result.Enqueued) > 0 {
					printOfflineHint(out, b)
				}
				return nil
			})
		},
	})

	return imagesCmd
}

func printOfflineHint(out io.Writer, b backend) {
	if !b.Live() {
		fmt.Fprintln(out, "Daemon is not running; the job will start once `panotrack daemon` is up")
	}
}

func resolvePath(arg string) (string, error) {
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func jobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.Progress.Message
		if job.ErrorMessage != "" {
			detail = job.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			statusLabel(job.Kind),
			statusLabel(job.Status),
			truncate(job.Name, 40),
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			relativeTime(job.UpdatedAt),
			truncate(detail, 60),
		})
	}
	return rows
}
