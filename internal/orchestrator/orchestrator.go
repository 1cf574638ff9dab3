// Package orchestrator walks the Task/Job graph, honors workflow
// dependencies between tasks, sequences build-then-publish within each
// job, and aggregates typed per-job results into a run report.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/airlift-cli/airlift/internal/buildspec"
	"github.com/airlift-cli/airlift/internal/execrunner"
	"github.com/airlift-cli/airlift/internal/logging"
	"github.com/airlift-cli/airlift/internal/manifest"
)

// unsupportedHostExit is the fixed failure code recorded when an iOS
// build is requested on a host that cannot run the iOS toolchain. No
// subprocess spawns in that case.
const unsupportedHostExit = 70

// Phase narrows a run to one half of the build-then-publish sequence.
type Phase string

const (
	PhaseAll     Phase = "all"
	PhaseBuild   Phase = "build"
	PhasePublish Phase = "publish"
)

func (p Phase) includesBuild() bool   { return p == PhaseAll || p == PhaseBuild }
func (p Phase) includesPublish() bool { return p == PhaseAll || p == PhasePublish }

// Selection optionally narrows a run to one task or job key. Empty
// means everything.
type Selection struct {
	Key string
}

// Options configures an Orchestrator.
type Options struct {
	Runner execrunner.Runner
	Logger *log.Logger
	// Sink optionally mirrors subprocess output to a log file.
	Sink *logging.FileSink
	// MaxParallel bounds how many tasks execute concurrently. Values
	// <= 0 mean sequential execution in declaration order.
	MaxParallel int
	// HostOS overrides runtime.GOOS (for tests).
	HostOS string
}

// Orchestrator executes a validated manifest.
type Orchestrator struct {
	runner      execrunner.Runner
	logger      *log.Logger
	sink        *logging.FileSink
	maxParallel int
	hostOS      string
}

// New wires an Orchestrator. A nil runner defaults to real host
// subprocesses.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		runner:      opts.Runner,
		logger:      opts.Logger,
		sink:        opts.Sink,
		maxParallel: opts.MaxParallel,
		hostOS:      opts.HostOS,
	}
	if o.runner == nil {
		o.runner = execrunner.New()
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.maxParallel <= 0 {
		o.maxParallel = 1
	}
	if o.hostOS == "" {
		o.hostOS = runtime.GOOS
	}
	return o
}

// Run executes the selected portion of the manifest and returns the
// aggregated report. The error return covers configuration problems
// only; job failures are reported through the Report.
func (o *Orchestrator) Run(ctx context.Context, m *manifest.Manifest, sel Selection, phase Phase) (*Report, error) {
	if err := validateWorkflows(m); err != nil {
		return nil, err
	}
	tasks, err := selectTasks(m, sel)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		selected[task.Key] = struct{}{}
	}

	report := &Report{Tasks: make([]TaskResult, len(tasks))}
	indexByKey := make(map[string]int, len(tasks))
	for i, task := range tasks {
		indexByKey[task.Key] = i
		report.Tasks[i] = TaskResult{Key: task.Key, Name: task.Name, State: TaskStatePending}
	}

	var mu sync.Mutex
	remaining := tasks
	for len(remaining) > 0 {
		var batch []manifest.Task
		var waiting []manifest.Task
		progressed := false
		for _, task := range remaining {
			blockers, ready := o.dependencyState(task, selected, indexByKey, report, &mu)
			switch {
			case len(blockers) > 0:
				mu.Lock()
				idx := indexByKey[task.Key]
				report.Tasks[idx].State = TaskStateSkipped
				report.Tasks[idx].BlockedBy = blockers
				report.Tasks[idx].Jobs = skippedJobs(task, blockers)
				mu.Unlock()
				o.logger.Warn("task skipped", "task", task.Key, "blocked_by", blockers)
				progressed = true
			case ready:
				batch = append(batch, task)
			default:
				waiting = append(waiting, task)
			}
		}
		if len(batch) == 0 && !progressed {
			// Cycles are rejected up front, so this only fires on a bug.
			return nil, errors.Newf("orchestrator: no runnable task among %d waiting", len(waiting))
		}
		if len(batch) > 0 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(o.maxParallel)
			for _, task := range batch {
				task := task
				g.Go(func() error {
					result := o.runTask(gctx, task, phase)
					mu.Lock()
					report.Tasks[indexByKey[task.Key]] = result
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}
		remaining = waiting
	}
	return report, nil
}

// dependencyState classifies a task against its workflow dependencies:
// blockers (failed or skipped deps), ready (all selected deps
// succeeded), or waiting. Dependencies outside the selection are
// treated as satisfied.
func (o *Orchestrator) dependencyState(task manifest.Task, selected map[string]struct{}, indexByKey map[string]int, report *Report, mu *sync.Mutex) ([]string, bool) {
	var blockers []string
	ready := true
	mu.Lock()
	defer mu.Unlock()
	for _, dep := range task.Workflows {
		if _, ok := selected[dep]; !ok {
			continue
		}
		switch report.Tasks[indexByKey[dep]].State {
		case TaskStateSucceeded:
		case TaskStateFailed, TaskStateSkipped:
			blockers = append(blockers, dep)
		default:
			ready = false
		}
	}
	return blockers, ready
}

func skippedJobs(task manifest.Task, blockers []string) []JobResult {
	out := make([]JobResult, 0, len(task.Jobs))
	for _, job := range task.Jobs {
		out = append(out, JobResult{
			TaskKey:     task.Key,
			JobKey:      job.Key,
			JobName:     job.Name,
			PackageName: job.PackageName,
			State:       JobStateSkipped,
			Detail:      fmt.Sprintf("workflow dependency failed: %v", blockers),
		})
	}
	return out
}

// runTask executes the task's jobs in declaration order.
func (o *Orchestrator) runTask(ctx context.Context, task manifest.Task, phase Phase) TaskResult {
	o.logger.Info("task started", "task", task.Key, "jobs", len(task.Jobs))
	result := TaskResult{Key: task.Key, Name: task.Name, State: TaskStateSucceeded}
	for _, job := range task.Jobs {
		jobResult := o.runJob(ctx, task, job, phase)
		result.Jobs = append(result.Jobs, jobResult)
		if jobResult.State.Failed() {
			result.State = TaskStateFailed
		}
	}
	o.logger.Info("task finished", "task", task.Key, "state", result.State)
	return result
}

// runJob drives one job through its state machine: build first when a
// builder is configured, publish only after a successful build.
func (o *Orchestrator) runJob(ctx context.Context, task manifest.Task, job manifest.Job, phase Phase) JobResult {
	result := JobResult{
		TaskKey:     task.Key,
		JobKey:      job.Key,
		JobName:     job.Name,
		PackageName: job.PackageName,
		State:       JobStatePending,
	}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	if phase.includesBuild() && job.Builder != nil {
		result.State = JobStateBuilding
		o.logger.Info("building", "job", job.Key, "package", job.PackageName)
		exit, detail := o.runBuilder(ctx, job)
		if exit != 0 {
			result.State = JobStateBuildFailed
			result.Detail = detail
			o.logger.Error("build failed", "job", job.Key, "detail", detail)
			return result
		}
		result.State = JobStateBuilt
		o.logger.Info("built", "job", job.Key)
	}

	if phase.includesPublish() && job.Publisher != nil {
		result.State = JobStatePublishing
		o.logger.Info("publishing", "job", job.Key, "package", job.PackageName)
		exit, detail := o.runSource(ctx, job, job.Publisher)
		if exit != 0 {
			result.State = JobStatePublishFailed
			result.Detail = detail
			o.logger.Error("publish failed", "job", job.Key, "detail", detail)
			return result
		}
		result.State = JobStatePublished
		o.logger.Info("published", "job", job.Key)
	}
	return result
}

// runBuilder handles the iOS host check before delegating to the
// generic source runner.
func (o *Orchestrator) runBuilder(ctx context.Context, job manifest.Job) (int, string) {
	if job.Builder.Kind == buildspec.BuilderIOS && o.hostOS != "darwin" {
		return unsupportedHostExit, fmt.Sprintf("ios builds require a darwin host (running on %s)", o.hostOS)
	}
	return o.runSource(ctx, job, job.Builder)
}

// runSource expands the argument vector and spawns the external tool,
// returning the exit code plus a human-readable failure detail.
func (o *Orchestrator) runSource(ctx context.Context, job manifest.Job, source buildspec.ArgumentSource) (int, string) {
	args, err := source.Args(job.Env)
	if err != nil {
		return -1, err.Error()
	}
	tool := source.Tool()
	o.logger.Debug("spawning", "job", job.Key, "tool", tool, "args", args)
	sinks := execrunner.Sinks{
		OnVerbose: func(line string) {
			o.logger.Debug(line, "job", job.Key)
			o.sink.Printf("[%s] %s", job.Key, line)
		},
		OnError: func(line string) {
			o.logger.Error(line, "job", job.Key)
			o.sink.Printf("[%s] stderr: %s", job.Key, line)
		},
	}
	exit, err := o.runner.Run(ctx, tool, args, job.Env, sinks)
	if err != nil {
		return -1, err.Error()
	}
	if exit != 0 {
		return exit, fmt.Sprintf("%s exited with code %d", tool, exit)
	}
	return 0, ""
}

// selectTasks applies the optional task/job key filter. A job-key
// match narrows the containing task to just that job.
func selectTasks(m *manifest.Manifest, sel Selection) ([]manifest.Task, error) {
	if sel.Key == "" {
		return m.Tasks, nil
	}
	if task, ok := m.TaskByKey(sel.Key); ok {
		return []manifest.Task{task}, nil
	}
	for _, task := range m.Tasks {
		for _, job := range task.Jobs {
			if job.Key == sel.Key {
				narrowed := task
				narrowed.Jobs = []manifest.Job{job}
				return []manifest.Task{narrowed}, nil
			}
		}
	}
	return nil, errors.Newf("orchestrator: no task or job matches key %q", sel.Key)
}
