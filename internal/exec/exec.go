package exec

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// Exit codes reported for failures that are not the child's own exit status.
const (
	ExitTimeout  = 124
	ExitNotFound = 127
)

// Result holds the execution result. Output is not kept; it went to the sink.
type Result struct {
	Duration time.Duration
	ExitCode int
}

// Runner executes a command, streaming its combined output to out.
type Runner interface {
	Run(ctx context.Context, name string, args []string, dir string, out io.Writer) (Result, error)
}

// StartError is returned when the process could not be started or waited
// for, as opposed to a process that ran and exited non-zero.
type StartError struct {
	Err error
}

func (e *StartError) Error() string { return e.Err.Error() }

func (e *StartError) Unwrap() error { return e.Err }

// CommandRunner runs real processes through os/exec.
type CommandRunner struct{}

func (CommandRunner) Run(ctx context.Context, name string, args []string, dir string, out io.Writer) (Result, error) {
	return Run(ctx, name, args, dir, out)
}

// Run executes a command with context/timeout. Stdout and stderr are
// interleaved into out as the process writes them.
// It returns specific exit codes for timeout (124) and not found (127).
func Run(ctx context.Context, name string, args []string, dir string, out io.Writer) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// os/exec serialises writes when both streams share one writer.
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	res := Result{
		Duration: time.Since(start),
		ExitCode: 0,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// not found, permission denied, context cancelled, ...
			res.ExitCode = 1
			err = &StartError{Err: err}
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.ExitCode = ExitTimeout
		} else if errors.Is(err, exec.ErrNotFound) {
			res.ExitCode = ExitNotFound
		}
	}

	return res, err
}
