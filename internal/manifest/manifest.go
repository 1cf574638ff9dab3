// Package manifest parses and validates the declarative pipeline
// manifest into the immutable Task/Job model. The variables block is
// resolved before any Job is built, so every Job already carries the
// final run Environment.
package manifest

import (
	"strings"

	"github.com/airlift-cli/airlift/internal/buildspec"
	"github.com/airlift-cli/airlift/internal/vars"
)

// Error reports a missing or malformed manifest: absent file, bad
// YAML, or a required key that is not present.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "manifest"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Manifest is the fully loaded pipeline description. Tasks and Jobs
// are immutable snapshots built once per load.
type Manifest struct {
	Name        string
	Description string
	Tasks       []Task

	// Env is the run's resolved variable environment, shared by
	// reference with every Job.
	Env *vars.Environment
}

// Task is a named group of Jobs, optionally gated on other tasks
// having succeeded first.
type Task struct {
	Name        string
	Key         string
	Description string
	// Workflows lists the keys of tasks that must succeed before this
	// one may run.
	Workflows []string
	Jobs      []Job
}

// Job is one build-then-publish unit targeting a single package.
type Job struct {
	Name        string
	Key         string
	Description string
	PackageName string
	Builder     *buildspec.BuilderSpec
	Publisher   *buildspec.PublisherSpec
	Env         *vars.Environment
}

// TaskByKey returns the task with the given key.
func (m *Manifest) TaskByKey(key string) (Task, bool) {
	for _, task := range m.Tasks {
		if task.Key == key {
			return task, true
		}
	}
	return Task{}, false
}

// HasJobKey reports whether any job in the manifest carries the key.
func (m *Manifest) HasJobKey(key string) bool {
	for _, task := range m.Tasks {
		for _, job := range task.Jobs {
			if job.Key == key {
				return true
			}
		}
	}
	return false
}

// slugKey derives a stable key from a display name when the manifest
// does not set one explicitly.
func slugKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}
