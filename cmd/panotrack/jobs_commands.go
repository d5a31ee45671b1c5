package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"panotrack/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"queue"},
		Short:   "Inspect and maintain the import queue",
	}

	var query api.ImportQuery
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				jobs, err := b.Jobs(cmd.Context(), query)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), jobs); done {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Kind", "Status", "Name", "Attempts", "Updated", "Detail"},
					jobRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&query.Kind, "kind", "", "Filter by kind (track-import, image-import)")
	listCmd.Flags().StringVar(&query.Status, "status", "", "Filter by status (queued, active, completed, failed)")
	listCmd.Flags().IntVar(&query.Limit, "limit", 0, "Maximum number of jobs")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				job, err := b.Job(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if done, err := writeStructured(cmd, ctx.format(), job); done {
					return err
				}
				renderJob(cmd, *job)
				return nil
			})
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed jobs (all failures when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				count, err := b.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				return writeCount(cmd, ctx, count, "Requeued %d job(s)\n")
			})
		},
	}

	var scope string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				count, err := b.Clear(cmd.Context(), api.ClearScope(strings.ToLower(strings.TrimSpace(scope))))
				if err != nil {
					return err
				}
				return writeCount(cmd, ctx, count, "Removed %d job(s)\n")
			})
		},
	}
	clearCmd.Flags().StringVar(&scope, "scope", string(api.ClearAll), "Which jobs to remove: all, completed or failed")

	removeCmd := &cobra.Command{
		Use:   "remove <id...>",
		Short: "Delete specific jobs that are not running",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				count, err := b.Remove(cmd.Context(), ids)
				if err != nil {
					return err
				}
				return writeCount(cmd, ctx, count, "Removed %d job(s)\n")
			})
		},
	}

	jobsCmd.AddCommand(listCmd, showCmd, retryCmd, clearCmd, removeCmd)
	return jobsCmd
}

func writeCount(cmd *cobra.Command, ctx *commandContext, count int64, message string) error {
	if done, err := writeStructured(cmd, ctx.format(), api.CountResult{Count: count}); done {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), message, count)
	return nil
}

func renderJob(cmd *cobra.Command, job api.Job) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"ID", fmt.Sprintf("%d", job.ID)},
		{"Kind", statusLabel(job.Kind)},
		{"Status", statusLabel(job.Status)},
		{"Name", job.Name},
		{"Key", job.Key},
		{"Phase", job.Progress.Phase},
		{"Attempts", fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts)},
		{"Created", relativeTime(job.CreatedAt)},
		{"Updated", relativeTime(job.UpdatedAt)},
	}
	if job.Progress.Message != "" {
		rows = append(rows, []string{"Message", job.Progress.Message})
	}
	if job.ErrorMessage != "" {
		rows = append(rows, []string{"Error", job.ErrorMessage})
		rows = append(rows, []string{"Error kind", job.ErrorKind})
		rows = append(rows, []string{"Unrecoverable", yesNo(job.Unrecoverable)})
	}
	if job.AvailableAt != "" && job.Status == "queued" {
		rows = append(rows, []string{"Next attempt", relativeTime(job.AvailableAt)})
	}
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
}
