package execrunner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/airlift-cli/airlift/internal/vars"
)

func testEnv(t *testing.T, raw vars.RawVars, environ []string) *vars.Environment {
	t.Helper()
	env, err := vars.Resolve(raw, environ)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return env
}

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test relies on sh")
	}
}

func TestRunStreamsStdoutAndStderr(t *testing.T) {
	requirePOSIX(t)
	var out, errs []string
	sinks := Sinks{
		OnVerbose: func(line string) { out = append(out, line) },
		OnError:   func(line string) { errs = append(errs, line) },
	}
	code, err := New().Run(context.Background(), "sh",
		[]string{"-c", "echo one; echo two; echo oops >&2"},
		testEnv(t, nil, []string{"PATH=/usr/bin:/bin"}), sinks)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(out) != 2 || out[0] != "one" || out[1] != "two" {
		t.Fatalf("unexpected stdout lines: %v", out)
	}
	if len(errs) != 1 || errs[0] != "oops" {
		t.Fatalf("unexpected stderr lines: %v", errs)
	}
}

func TestRunReportsExitCodeAsData(t *testing.T) {
	requirePOSIX(t)
	code, err := New().Run(context.Background(), "sh",
		[]string{"-c", "exit 7"},
		testEnv(t, nil, []string{"PATH=/usr/bin:/bin"}), Sinks{})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error, got %v", err)
	}
	if code != 7 {
		t.Fatalf("expected exit 7, got %d", code)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	_, err := New().Run(context.Background(), "definitely-not-a-tool-xyz", nil,
		testEnv(t, nil, nil), Sinks{})
	if err == nil {
		t.Fatal("expected spawn failure")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError, got %T", err)
	}
}

func TestRunPassesEnvironment(t *testing.T) {
	requirePOSIX(t)
	env := testEnv(t, vars.RawVars{{Name: "GREETING", Value: "hello"}}, []string{"PATH=/usr/bin:/bin"})
	var out []string
	code, err := New().Run(context.Background(), "sh",
		[]string{"-c", "echo $GREETING"}, env,
		Sinks{OnVerbose: func(line string) { out = append(out, line) }})
	if err != nil || code != 0 {
		t.Fatalf("run: code=%d err=%v", code, err)
	}
	if len(out) != 1 || out[0] != "hello" {
		t.Fatalf("environment not passed through: %v", out)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	requirePOSIX(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	code, err := New().Run(ctx, "sh", []string{"-c", "sleep 30"},
		testEnv(t, nil, []string{"PATH=/usr/bin:/bin"}), Sinks{})
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancellation did not kill the subprocess")
	}
	if err == nil && code == 0 {
		t.Fatal("expected cancelled run to fail")
	}
}
