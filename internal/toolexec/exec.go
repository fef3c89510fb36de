package toolexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"uploadflow/internal/logging"
	"uploadflow/internal/services"
)

// Command describes a single external invocation.
type Command struct {
	Dir    string
	Name   string
	Args   []string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) error

// Run calls f(ctx, cmd).
func (f RunnerFunc) Run(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// ExitError reports a child process that ran but exited unsuccessfully.
type ExitError struct {
	Name string
	Args []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// ExitCode extracts the child exit status from err, if any.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// ExecRunner launches commands with os/exec.
type ExecRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(r *ExecRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for invocation records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewExecRunner constructs a runner backed by os/exec.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the command in cmd.Dir and waits for it to exit. Child output is
// streamed to cmd.Stdout and cmd.Stderr, defaulting to the process streams.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return services.Wrap(services.ErrConfiguration, "", "exec", "command name is empty", nil)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = cmd.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("external command starting",
		logging.String("command", cmd.String()),
		logging.String(logging.FieldWorkDir, cmd.Dir),
	)
	started := time.Now()
	err := c.Run()
	elapsed := time.Since(started)

	if err == nil {
		logger.Debug("external command finished",
			logging.String("command", cmd.Name),
			logging.Duration("elapsed", elapsed),
		)
		return nil
	}

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return services.Wrap(services.ErrExternalTool, "", cmd.Name,
			fmt.Sprintf("timed out after %s", r.timeout), ctxErr)
	case errors.Is(ctxErr, context.Canceled):
		return services.Wrap(services.ErrCancelled, "", cmd.Name, "interrupted", ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return services.Wrap(services.ErrExternalTool, "", cmd.Name, "", &ExitError{
			Name: cmd.Name,
			Args: append([]string(nil), cmd.Args...),
			Code: exitErr.ExitCode(),
		})
	}
	return services.Wrap(services.ErrExternalTool, "", cmd.Name, "failed to start", err)
}
