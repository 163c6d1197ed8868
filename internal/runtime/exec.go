package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// Grace period for output pipes to drain after the process is killed.
const waitDelay = 5 * time.Second

// A single subprocess invocation.
type Command struct {
	Dir     string        // Working directory of the process.
	Name    string        // Binary to execute.
	Args    []string      // Arguments, not including the binary.
	Timeout time.Duration // Wall-clock limit; zero means none.
}

// Returns the shell-quoted command line, for logs and error messages.
func (c Command) String() string {
	return shellescape.QuoteCommand(append([]string{c.Name}, c.Args...))
}

// Output of a finished subprocess.
type ExecResult struct {
	ExitCode int    // Exit code of the process, -1 when killed by a signal.
	Signal   string // Name of the terminating signal, if any.
	TimedOut bool   // The process was killed because its timeout elapsed.
	Stdout   []byte // Captured standard output.
	Stderr   []byte // Captured standard error.
}

// Runs subprocesses to completion.
//
// A nonzero exit is not an error: it is reported through [ExecResult] and
// the caller decides. An error means the process could not be run at all.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*ExecResult, error)
}

// Returns the [Executor] backed by os/exec.
func SystemExecutor() Executor {
	return systemExecutor{}
}

type systemExecutor struct{}

// Runs the command and waits for it to exit.
//
// The process is placed in its own process group. When the timeout elapses
// or ctx is cancelled, the whole group is killed with SIGKILL so that
// grandchildren (the container's conmon and payload) do not outlive it.
func (systemExecutor) Execute(ctx context.Context, c Command) (*ExecResult, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	slog.Debug("exec", "command", c.String(), "dir", c.Dir, "timeout", c.Timeout)

	err := cmd.Run()
	result := &ExecResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Signal = exitSignal(exitErr.ProcessState)
		result.TimedOut = c.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded)
		return result, nil
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, c.Name, err)
}

// A subprocess that exited unsuccessfully.
//
// Unwraps to the sentinel of the operation that failed ([ErrBuild],
// [ErrRun], [ErrConfiguration] or [ErrRuntime]).
type ProcessError struct {
	Op       error    // Sentinel of the failed operation.
	Args     []string // Full command line, binary first.
	Status   int      // Exit status, -1 when killed by a signal.
	Signal   string   // Terminating signal, if any.
	TimedOut bool     // Killed because its timeout elapsed.
	Stdout   []byte   // Captured standard output.
	Stderr   []byte   // Captured standard error.
}

// Creates a [ProcessError] for a finished command.
func newProcessError(op error, c Command, res *ExecResult) *ProcessError {
	return &ProcessError{
		Op:       op,
		Args:     append([]string{c.Name}, c.Args...),
		Status:   res.ExitCode,
		Signal:   res.Signal,
		TimedOut: res.TimedOut,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s exited with status %d", e.Op, shellescape.QuoteCommand(e.Args), e.Status)
	if e.Signal != "" {
		fmt.Fprintf(&b, " signal %s", e.Signal)
	}
	if e.TimedOut {
		b.WriteString(" (timed out)")
	}
	b.WriteString("\n----\n")
	b.Write(e.Stdout)
	b.WriteString("\n----\n")
	b.Write(e.Stderr)
	return b.String()
}

func (e *ProcessError) Unwrap() error {
	return e.Op
}

// Runs c and converts a nonzero exit into a [ProcessError] wrapping op.
func mustExecute(ctx context.Context, x Executor, op error, c Command) (*ExecResult, error) {
	res, err := x.Execute(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", op, err)
	}
	if res.ExitCode != 0 {
		return nil, newProcessError(op, c, res)
	}
	return res, nil
}
