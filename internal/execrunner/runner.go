// Package execrunner spawns one external tool with resolved arguments
// and environment, streams its output line by line, and reports the
// real exit code. Interpretation of a non-zero code is the caller's
// business; the runner applies no retry and no timeout of its own.
package execrunner

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/airlift-cli/airlift/internal/vars"
)

// Sinks receives subprocess output as it arrives, not buffered to
// completion. Either callback may be nil.
type Sinks struct {
	// OnVerbose receives one standard-output line at a time.
	OnVerbose func(line string)
	// OnError receives one standard-error line at a time.
	OnError func(line string)
}

// ExecError reports a subprocess that could not be spawned or waited
// on. A tool that runs and exits non-zero is not an ExecError; that
// exit code is returned as data.
type ExecError struct {
	Tool string
	Err  error
}

func (e *ExecError) Error() string {
	return "execrunner: " + e.Tool + ": " + e.Err.Error()
}

func (e *ExecError) Unwrap() error { return e.Err }

// Runner is the contract the orchestrator dispatches through. Tests
// substitute a fake; production uses Exec.
type Runner interface {
	Run(ctx context.Context, tool string, args []string, env *vars.Environment, sinks Sinks) (int, error)
}

// Exec runs tools as real host subprocesses.
type Exec struct{}

// New returns a subprocess-backed Runner.
func New() *Exec {
	return &Exec{}
}

// Run spawns the tool and blocks until it exits. Context cancellation
// kills the subprocess. The returned int is the subprocess exit code;
// it is only meaningful when the error is nil.
func (r *Exec) Run(ctx context.Context, tool string, args []string, env *vars.Environment, sinks Sinks) (int, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Env = env.Slice()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, &ExecError{Tool: tool, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, &ExecError{Tool: tool, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return -1, &ExecError{Tool: tool, Err: errors.Wrap(err, "spawn")}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdout, sinks.OnVerbose)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderr, sinks.OnError)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, &ExecError{Tool: tool, Err: err}
	}
	return 0, nil
}

func streamLines(pipe io.Reader, sink func(string)) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if sink != nil {
			sink(scanner.Text())
		}
	}
}
