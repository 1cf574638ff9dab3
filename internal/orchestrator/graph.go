package orchestrator

import (
	"strings"

	"github.com/airlift-cli/airlift/internal/manifest"
)

// WorkflowError reports a `workflows` entry that matches no task key.
type WorkflowError struct {
	TaskKey  string
	Workflow string
}

func (e *WorkflowError) Error() string {
	return "orchestrator: task " + e.TaskKey + ": workflow " + e.Workflow + " matches no task key"
}

// CycleError reports workflow dependencies that loop back on
// themselves, which would otherwise deadlock the run.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "orchestrator: workflow cycle: " + strings.Join(e.Path, " -> ")
}

// validateWorkflows checks every dependency reference against the full
// manifest and rejects cycles, both before any job executes.
func validateWorkflows(m *manifest.Manifest) error {
	keys := make(map[string]struct{}, len(m.Tasks))
	for _, task := range m.Tasks {
		keys[task.Key] = struct{}{}
	}
	for _, task := range m.Tasks {
		for _, dep := range task.Workflows {
			if _, ok := keys[dep]; !ok {
				return &WorkflowError{TaskKey: task.Key, Workflow: dep}
			}
		}
	}
	return detectCycle(m)
}

const (
	colorUnvisited = 0
	colorVisiting  = 1
	colorDone      = 2
)

func detectCycle(m *manifest.Manifest) error {
	deps := make(map[string][]string, len(m.Tasks))
	for _, task := range m.Tasks {
		deps[task.Key] = task.Workflows
	}
	colors := make(map[string]int, len(m.Tasks))
	var stack []string
	var visit func(key string) *CycleError
	visit = func(key string) *CycleError {
		colors[key] = colorVisiting
		stack = append(stack, key)
		for _, dep := range deps[key] {
			switch colors[dep] {
			case colorVisiting:
				// Trim the stack to the cycle entry point for a readable path.
				start := 0
				for i, k := range stack {
					if k == dep {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), dep)
				return &CycleError{Path: path}
			case colorUnvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[key] = colorDone
		return nil
	}
	for _, task := range m.Tasks {
		if colors[task.Key] == colorUnvisited {
			if err := visit(task.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
