package notifications

import (
	"context"
	"fmt"
	"strings"

	"panotrack/internal/cmdrun"
)

// TargetSource lists the apprise URLs messages are fanned out to.
type TargetSource interface {
	TargetURLs(ctx context.Context) ([]string, error)
}

// AppriseSink delivers through the apprise CLI:
// apprise -t <title> -b <body> <url>...
type AppriseSink struct {
	runner  cmdrun.Runner
	binary  string
	targets TargetSource
}

// NewAppriseSink returns a sink invoking binary through runner.
func NewAppriseSink(runner cmdrun.Runner, binary string, targets TargetSource) *AppriseSink {
	if strings.TrimSpace(binary) == "" {
		binary = "apprise"
	}
	return &AppriseSink{runner: runner, binary: binary, targets: targets}
}

// WithApprise adds an apprise sink.
func WithApprise(runner cmdrun.Runner, binary string, targets TargetSource) Option {
	return WithSink(NewAppriseSink(runner, binary, targets))
}

func (a *AppriseSink) Name() string { return "apprise" }

// Args returns the apprise argument list for msg and urls.
func (a *AppriseSink) Args(msg Message, urls []string) []string {
	args := []string{"-t", msg.Title, "-b", msg.Body}
	return append(args, urls...)
}

// Send runs apprise once for all targets. No targets means nothing to do.
func (a *AppriseSink) Send(ctx context.Context, msg Message) error {
	if a.targets == nil {
		return nil
	}
	urls, err := a.targets.TargetURLs(ctx)
	if err != nil {
		return fmt.Errorf("list notification targets: %w", err)
	}
	if len(urls) == 0 {
		return nil
	}
	_, err = a.runner.Run(ctx, cmdrun.Command{
		Name:  a.binary,
		Args:  a.Args(msg, urls),
		Class: cmdrun.ClassNotification,
	})
	return err
}
