package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"panotrack/internal/daemonrun"
	"panotrack/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	var development bool
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the panotrack daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	daemonCmd.Flags().BoolVar(&development, "dev", false, "Human-friendly log output with source locations")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				if daemonUnavailable(err) {
					fmt.Fprintln(stdout, "Daemon is not running")
					return nil
				}
				return wrapDialError(err, ctx.socketPath())
			}
			defer client.Close()
			resp, err := client.Stop()
			if err != nil {
				return err
			}
			if !resp.Stopping {
				fmt.Fprintln(stdout, "Stop request sent")
				return nil
			}
			fmt.Fprintln(stdout, "Stopping daemon...")
			if waitForSocketGone(ctx.socketPath(), 5*time.Second) {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, catalog and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				status, err := b.Status(cmd.Context())
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), status); done {
					return err
				}
				stdout := cmd.OutOrStdout()
				renderStatus(stdout, status, shouldColorize(stdout))
				return nil
			})
		},
	}

	rescanCmd := &cobra.Command{
		Use:   "rescan",
		Short: "Rescan every import directory for new clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Rescan()
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), resp); done {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rescan queued %d import(s)\n", resp.Queued)
				return nil
			})
		},
	}

	testNotifyCmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					if resp != nil && resp.Message != "" {
						fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					}
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				case resp.Sent:
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				}
				return nil
			})
		},
	}

	return []*cobra.Command{daemonCmd, stopCmd, statusCmd, rescanCmd, testNotifyCmd}
}

func waitForSocketGone(socket string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socket)
		if err != nil {
			return true
		}
		_ = client.Close()
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
