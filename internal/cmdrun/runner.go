package cmdrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"panotrack/internal/logging"
	"panotrack/internal/services"
)

// Class groups invocations that share a deadline.
type Class string

const (
	ClassConversion   Class = "conversion"
	ClassProbe        Class = "probe"
	ClassExtraction   Class = "extraction"
	ClassNotification Class = "notification"
)

// Command describes one external program invocation.
type Command struct {
	Name  string
	Args  []string
	Class Class
	Dir   string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result carries everything a caller needs to classify the outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external programs.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Observer receives timing for each invocation. metrics.Metrics implements it.
type Observer interface {
	ObserveTool(program, outcome string, elapsed time.Duration)
}

// ExecRunner runs programs with os/exec, applying a per-class deadline.
type ExecRunner struct {
	timeouts  map[Class]time.Duration
	waitDelay time.Duration
	observer  Observer
	logger    *slog.Logger
}

// Option customizes an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout sets the deadline for class. Zero disables the deadline.
func WithTimeout(class Class, timeout time.Duration) Option {
	return func(r *ExecRunner) { r.timeouts[class] = timeout }
}

// WithObserver records invocation durations.
func WithObserver(observer Observer) Option {
	return func(r *ExecRunner) { r.observer = observer }
}

// WithLogger sets the logger used for invocation traces.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) { r.logger = logging.NewComponentLogger(logger, "cmdrun") }
}

// NewExecRunner constructs a runner. Classes without an explicit timeout only
// honour the caller's context.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		timeouts:  make(map[Class]time.Duration),
		waitDelay: 5 * time.Second,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the deadline configured for class.
func (r *ExecRunner) Timeout(class Class) time.Duration {
	return r.timeouts[class]
}

// Run executes cmd. A non-zero exit is reported as services.ErrToolExecution
// with the captured Result still returned so callers can inspect output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return Result{ExitCode: -1}, services.Wrap(services.ErrConfiguration, "", "run", "empty command name", nil)
	}
	runCtx := ctx
	if timeout := r.timeouts[cmd.Class]; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(runCtx, cmd.Name, cmd.Args...) //nolint:gosec
	execCmd.Dir = cmd.Dir
	execCmd.WaitDelay = r.waitDelay
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("command started",
		logging.String("command", cmd.String()),
		logging.String("class", string(cmd.Class)),
	)

	start := time.Now()
	runErr := execCmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(execCmd, runErr),
		Duration: time.Since(start),
	}

	err := r.classify(ctx, runCtx, cmd, result, runErr)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if r.observer != nil {
		r.observer.ObserveTool(cmd.Name, outcome, result.Duration)
	}
	logger.Debug("command finished",
		logging.String("command", cmd.Name),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("duration", result.Duration),
		logging.String("outcome", outcome),
	)
	return result, err
}

func (r *ExecRunner) classify(parent, runCtx context.Context, cmd Command, result Result, runErr error) error {
	if runErr == nil {
		return nil
	}
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err := services.ToolExecution(cmd.Name, result.ExitCode, result.Stderr,
			fmt.Errorf("%w: %s class deadline %s exceeded", services.ErrTimeout, cmd.Class, r.timeouts[cmd.Class]))
		return services.WithHint(err, "raise the tools timeout for this class or check for a hung process")
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		err := services.ToolExecution(cmd.Name, -1, "", runErr)
		return services.WithHint(err, "install "+cmd.Name+" or set its path in the [tools] config section")
	}
	return services.ToolExecution(cmd.Name, result.ExitCode, result.Stderr, runErr)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
