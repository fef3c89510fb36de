package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"uploadflow/internal/services"
	"uploadflow/internal/toolexec"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCodeInterrupted follows the shell convention for SIGINT.
const exitCodeInterrupted = 130

// exitCode maps a command error to the process status. A signal interrupt
// exits 130, a declined prompt is a clean exit and a failed tool passes its
// own status through.
func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "interrupted")
		return exitCodeInterrupted
	}
	if services.IsCancellation(err) {
		return 0
	}
	fmt.Fprintln(stderr, err)
	if code, ok := toolexec.ExitCode(err); ok && code > 0 {
		return code
	}
	return 1
}
