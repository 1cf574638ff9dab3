package orchestrator

import "time"

// JobState tracks one job through its build-then-publish lifecycle.
type JobState string

const (
	JobStatePending       JobState = "pending"
	JobStateBuilding      JobState = "building"
	JobStateBuilt         JobState = "built"
	JobStateBuildFailed   JobState = "build-failed"
	JobStatePublishing    JobState = "publishing"
	JobStatePublished     JobState = "published"
	JobStatePublishFailed JobState = "publish-failed"
	JobStateSkipped       JobState = "skipped"
)

// Failed reports whether the state is a failure terminal.
func (s JobState) Failed() bool {
	return s == JobStateBuildFailed || s == JobStatePublishFailed
}

// TaskState summarizes one task's outcome.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
	// TaskStateSkipped means a workflow dependency failed, so the task
	// never ran.
	TaskStateSkipped TaskState = "skipped"
)

// JobResult is the typed per-job outcome. Failures are values here,
// not errors, so concurrent task results aggregate cleanly.
type JobResult struct {
	TaskKey     string
	JobKey      string
	JobName     string
	PackageName string
	State       JobState
	// Detail carries the failure explanation or exit code text.
	Detail   string
	Duration time.Duration
}

// TaskResult aggregates the job outcomes of one task.
type TaskResult struct {
	Key   string
	Name  string
	State TaskState
	// BlockedBy names the failed or skipped dependencies that caused a
	// skip.
	BlockedBy []string
	Jobs      []JobResult
}

// Report is the final run outcome across every task.
type Report struct {
	Tasks []TaskResult
}

// Failed reports whether any job ended in a failed state or any task
// was skipped because its dependency failed.
func (r *Report) Failed() bool {
	for _, task := range r.Tasks {
		if task.State == TaskStateFailed || task.State == TaskStateSkipped {
			return true
		}
	}
	return false
}

// JobResults flattens the report in task declaration order.
func (r *Report) JobResults() []JobResult {
	var out []JobResult
	for _, task := range r.Tasks {
		out = append(out, task.Jobs...)
	}
	return out
}
