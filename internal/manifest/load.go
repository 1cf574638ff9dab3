package manifest

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/airlift-cli/airlift/internal/buildspec"
	"github.com/airlift-cli/airlift/internal/vars"
)

// rawDocument mirrors the on-disk manifest shape. Builder/publisher
// mappings stay as yaml nodes until presets are composed, because a
// node can be decoded over an already-populated struct to get exact
// field-by-field override semantics.
type rawDocument struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Variables   vars.RawVars         `yaml:"variables"`
	Arguments   map[string]yaml.Node `yaml:"arguments"`
	Tasks       []rawTask            `yaml:"tasks"`
}

type rawTask struct {
	Name        string   `yaml:"name"`
	Key         string   `yaml:"key"`
	Description string   `yaml:"description"`
	Workflows   []string `yaml:"workflows"`
	Jobs        []rawJob `yaml:"jobs"`
}

type rawJob struct {
	Name        string     `yaml:"name"`
	Key         string     `yaml:"key"`
	Description string     `yaml:"description"`
	PackageName string     `yaml:"package_name"`
	Builder     *yaml.Node `yaml:"builder"`
	Publisher   *yaml.Node `yaml:"publisher"`
}

// Option customizes a Load call.
type Option func(*loader)

// WithEnviron overrides the OS environment used for variable
// resolution (primarily for tests).
func WithEnviron(environ []string) Option {
	return func(l *loader) {
		l.environ = environ
	}
}

// WithLogger sets the logger that echoes the resolved variable
// mapping for audit.
func WithLogger(logger *log.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

type loader struct {
	environ []string
	logger  *log.Logger
}

// Load reads, resolves, and validates the manifest at path. Any
// schema problem, unresolved variable, or invalid builder/publisher
// configuration fails the load; nothing executes on a partial
// manifest.
func Load(path string, opts ...Option) (*Manifest, error) {
	l := &loader{environ: os.Environ(), logger: log.Default()}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Path: path, Reason: "manifest file not found"}
		}
		return nil, &Error{Path: path, Reason: "read failed", Err: err}
	}

	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Path: path, Reason: "invalid yaml", Err: err}
	}
	if doc.Name == "" {
		return nil, &Error{Path: path, Reason: "name is required"}
	}
	if doc.Description == "" {
		return nil, &Error{Path: path, Reason: "description is required"}
	}
	if len(doc.Tasks) == 0 {
		return nil, &Error{Path: path, Reason: "tasks is required"}
	}

	env, err := vars.Resolve(doc.Variables, l.environ)
	if err != nil {
		return nil, err
	}
	env.Audit(l.logger)

	m := &Manifest{
		Name:        doc.Name,
		Description: doc.Description,
		Env:         env,
	}
	seenKeys := map[string]struct{}{}
	for i, raw := range doc.Tasks {
		task, err := l.buildTask(raw, doc.Arguments, env)
		if err != nil {
			return nil, errors.Wrapf(err, "manifest %s: tasks[%d]", path, i)
		}
		if _, dup := seenKeys[task.Key]; dup {
			return nil, &Error{Path: path, Reason: fmt.Sprintf("duplicate task key %q", task.Key)}
		}
		seenKeys[task.Key] = struct{}{}
		m.Tasks = append(m.Tasks, task)
	}
	return m, nil
}

func (l *loader) buildTask(raw rawTask, presets map[string]yaml.Node, env *vars.Environment) (Task, error) {
	if raw.Name == "" {
		return Task{}, &Error{Reason: "task name is required"}
	}
	task := Task{
		Name:        raw.Name,
		Key:         raw.Key,
		Description: raw.Description,
		Workflows:   append([]string(nil), raw.Workflows...),
	}
	if task.Key == "" {
		task.Key = slugKey(raw.Name)
	}
	for i, rawJob := range raw.Jobs {
		job, err := l.buildJob(rawJob, presets, env)
		if err != nil {
			return Task{}, errors.Wrapf(err, "task %s: jobs[%d]", task.Key, i)
		}
		task.Jobs = append(task.Jobs, job)
	}
	return task, nil
}

func (l *loader) buildJob(raw rawJob, presets map[string]yaml.Node, env *vars.Environment) (Job, error) {
	if raw.PackageName == "" {
		return Job{}, &Error{Reason: "job package_name is required"}
	}
	job := Job{
		Name:        raw.Name,
		Key:         raw.Key,
		Description: raw.Description,
		PackageName: raw.PackageName,
		Env:         env,
	}
	if job.Key == "" {
		job.Key = slugKey(raw.Name)
	}
	if raw.Builder != nil {
		spec := &buildspec.BuilderSpec{}
		if err := decodeWithPreset(raw.Builder, presets, spec, func() string { return spec.Preset }); err != nil {
			return Job{}, errors.Wrap(err, "builder")
		}
		if err := spec.Validate(); err != nil {
			return Job{}, errors.Wrap(err, "builder")
		}
		job.Builder = spec
	}
	if raw.Publisher != nil {
		spec := &buildspec.PublisherSpec{}
		if err := decodeWithPreset(raw.Publisher, presets, spec, func() string { return spec.Preset }); err != nil {
			return Job{}, errors.Wrap(err, "publisher")
		}
		if err := spec.Validate(); err != nil {
			return Job{}, errors.Wrap(err, "publisher")
		}
		job.Publisher = spec
	}
	return job, nil
}

// decodeWithPreset composes a spec from a named base preset plus the
// job's own mapping. The preset decodes first, then the job node
// decodes over it, so any field the job sets explicitly wins and
// everything else falls back to the preset.
func decodeWithPreset(node *yaml.Node, presets map[string]yaml.Node, out any, presetName func() string) error {
	if err := node.Decode(out); err != nil {
		return &Error{Reason: "invalid mapping", Err: err}
	}
	name := presetName()
	if name == "" {
		return nil
	}
	base, ok := presets[name]
	if !ok {
		return &Error{Reason: fmt.Sprintf("unknown argument preset %q", name)}
	}
	if err := base.Decode(out); err != nil {
		return &Error{Reason: fmt.Sprintf("invalid argument preset %q", name), Err: err}
	}
	// Second pass so explicit job fields override the preset again.
	if err := node.Decode(out); err != nil {
		return &Error{Reason: "invalid mapping", Err: err}
	}
	return nil
}
