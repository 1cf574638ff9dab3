package vars

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ResolutionError reports a variable that could not be resolved, either
// because a placeholder referenced an unknown name or because a shell
// directive failed.
type ResolutionError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := "vars: resolve " + e.Key + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

const shellDirectiveTimeout = 2 * time.Minute

// Resolve turns raw manifest variables plus the OS environment into one
// resolved Environment. Shell directives run first for each entry, then
// placeholders expand in a single pass against the union of the OS
// environment and the variables resolved earlier in declaration order.
// The pass is deliberately not recursive: a value produced by expansion
// is never re-scanned, and forward references fail. A resolved value
// that still carries placeholder syntax fails the whole pass, so no
// unresolved marker can reach an argument vector later.
func Resolve(raw RawVars, environ []string) (*Environment, error) {
	values := environFromSlice(environ)
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		if entry.Name == "" {
			return nil, &ResolutionError{Key: "(empty)", Reason: "variable name must not be empty"}
		}
		var resolved string
		if command, ok := shellDirective(entry.Value); ok {
			out, err := runShellDirective(command, values)
			if err != nil {
				return nil, &ResolutionError{Key: entry.Name, Reason: "shell directive failed", Err: err}
			}
			resolved = out
		} else {
			expanded, err := expandPlaceholders(entry.Value, func(name string) (string, bool) {
				value, ok := values[name]
				return value, ok
			})
			if err != nil {
				return nil, errors.Wrapf(err, "vars: resolve %s", entry.Name)
			}
			resolved = expanded
		}
		if strings.Contains(resolved, "${") {
			return nil, &ResolutionError{Key: entry.Name, Reason: "resolved value still contains a placeholder: " + resolved}
		}
		values[entry.Name] = resolved
		names = append(names, entry.Name)
	}
	return &Environment{manifestNames: names, values: values}, nil
}

// shellDirective reports whether the raw value is a "run this command"
// directive, i.e. the whole value is wrapped in $( ... ).
func shellDirective(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "$(") || !strings.HasSuffix(trimmed, ")") {
		return "", false
	}
	return trimmed[2 : len(trimmed)-1], true
}

// runShellDirective executes the directive with the in-process POSIX
// shell interpreter and returns its trimmed stdout. The variables
// resolved so far are visible to the command.
func runShellDirective(command string, values map[string]string) (string, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "directive")
	if err != nil {
		return "", errors.Wrap(err, "parse")
	}
	environ := make([]string, 0, len(values))
	for name, value := range values {
		environ = append(environ, name+"="+value)
	}
	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), shellDirectiveTimeout)
	defer cancel()
	if err := runner.Run(ctx, prog); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", errors.Wrapf(err, "%s", msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
