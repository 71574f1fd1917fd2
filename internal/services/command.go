package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes an external program and returns its combined output.
// Collaborators accept a runner so tests can substitute fakes.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, tail(strings.TrimSpace(string(output)), 600))
	}
	return output, nil
}

// RunWithTimeout invokes runner with a deadline derived from timeout. A
// non-positive timeout still inherits any deadline already on ctx. Deadline
// expiry is reported as ErrTimeout.
func RunWithTimeout(ctx context.Context, runner CommandRunner, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if runner == nil {
		runner = ExecRunner
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	output, err := runner(callCtx, name, args...)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("%s exceeded %s: %w", name, timeout, ErrTimeout)
		}
		return output, err
	}
	return output, nil
}

func tail(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-limit:]
}
