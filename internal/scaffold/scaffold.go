// Package scaffold writes starter manifests: a commented default for
// `airlift init` and a minimal manifest rendered from wizard answers
// for `airlift create`.
package scaffold

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/airlift-cli/airlift/internal/buildspec"
	"github.com/airlift-cli/airlift/internal/vars"
)

// DefaultManifestName is the file both subcommands write when no path
// is given.
const DefaultManifestName = "airlift.yaml"

const defaultManifest = `# airlift manifest
#
# A pipeline is a list of tasks; each task is a list of jobs; each job
# builds and/or publishes one application package. Run it with:
#
#   airlift run
#
name: my-pipeline
description: Build and distribute the app

# Variables resolve top to bottom before anything runs. A value may be
# a literal, reference earlier variables with ${NAME}, or be a shell
# directive $(command) whose trimmed stdout becomes the value.
variables:
  APP_VERSION: 1.0.0
  BUILD_NUMBER: $(date +%s)

# Named argument presets. A builder or publisher may set "preset:" to
# inherit these fields; fields set on the job itself win.
arguments:
  release-defaults:
    build_mode: release
    no_pub: true

tasks:
  - name: Build all apps
    # key defaults to the lowercased, dash-separated name; set it
    # explicitly to reference this task from another task's workflows.
    key: build
    jobs:
      - name: Android release
        package_name: com.example.app
        builder:
          platform: android
          preset: release-defaults
          binary_type: apk
          build_name: ${APP_VERSION}
          build_number: ${BUILD_NUMBER}

  - name: Distribute
    key: distribute
    # workflows gates this task on other tasks' keys succeeding first.
    workflows: [build]
    jobs:
      - name: Firebase beta
        package_name: com.example.app
        publisher:
          target: firebase
          file_path: build/app/outputs/flutter-apk/app-release.apk
          app_id: ${FIREBASE_APP_ID}
          groups: [beta-testers]
`

// DefaultManifest returns the commented starter manifest.
func DefaultManifest() []byte {
	return []byte(defaultManifest)
}

// WriteDefault writes the starter manifest at path, refusing to
// clobber an existing file.
func WriteDefault(path string) error {
	return writeNew(path, DefaultManifest())
}

// Answers carries what the create wizard collected. Tool is only
// meaningful for the custom platform, where it names the binary the
// builder invokes.
type Answers struct {
	ProjectName string
	Description string
	JobName     string
	PackageName string
	Platform    string
	Tool        string
	BinaryType  string
}

// Validate rejects incomplete or contradictory wizard answers before
// anything is rendered.
func (a Answers) Validate() error {
	if strings.TrimSpace(a.ProjectName) == "" {
		return errors.New("scaffold: project name is required")
	}
	if strings.TrimSpace(a.PackageName) == "" {
		return errors.New("scaffold: package name is required")
	}
	spec := a.builderSpec()
	if err := spec.Validate(); err != nil {
		return errors.Wrap(err, "scaffold")
	}
	return nil
}

func (a Answers) builderSpec() *buildspec.BuilderSpec {
	kind := buildspec.BuilderKind(strings.TrimSpace(a.Platform))
	if kind == "" {
		kind = buildspec.BuilderAndroid
	}
	spec := &buildspec.BuilderSpec{
		Kind:       kind,
		BinaryType: strings.TrimSpace(a.BinaryType),
		BuildMode:  buildspec.ModeRelease,
	}
	if kind == buildspec.BuilderCustom {
		spec.Command = strings.TrimSpace(a.Tool)
		// Binary types belong to the platform builders; a custom tool
		// has no say in them.
		spec.BinaryType = ""
		spec.BuildMode = ""
	}
	return spec
}

// renderedJob mirrors the manifest job schema for marshalling.
type renderedJob struct {
	Name        string                 `yaml:"name"`
	PackageName string                 `yaml:"package_name"`
	Builder     *buildspec.BuilderSpec `yaml:"builder,omitempty"`
}

type renderedTask struct {
	Name string        `yaml:"name"`
	Jobs []renderedJob `yaml:"jobs"`
}

type renderedManifest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Variables   vars.RawVars   `yaml:"variables,omitempty"`
	Tasks       []renderedTask `yaml:"tasks"`
}

// Render produces manifest YAML from wizard answers.
func Render(a Answers) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	jobName := strings.TrimSpace(a.JobName)
	if jobName == "" {
		jobName = "Release build"
	}
	description := strings.TrimSpace(a.Description)
	if description == "" {
		description = fmt.Sprintf("Pipeline for %s", a.PackageName)
	}
	doc := renderedManifest{
		Name:        strings.TrimSpace(a.ProjectName),
		Description: description,
		Variables: vars.RawVars{
			{Name: "APP_VERSION", Value: "1.0.0"},
		},
		Tasks: []renderedTask{{
			Name: "Build",
			Jobs: []renderedJob{{
				Name:        jobName,
				PackageName: strings.TrimSpace(a.PackageName),
				Builder:     a.builderSpec(),
			}},
		}},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "scaffold: render manifest")
	}
	return out, nil
}

// WriteFromAnswers renders the wizard answers and writes them at path,
// refusing to clobber an existing file.
func WriteFromAnswers(path string, a Answers) error {
	data, err := Render(a)
	if err != nil {
		return err
	}
	return writeNew(path, data)
}

func writeNew(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("scaffold: %s already exists, refusing to overwrite", path)
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "scaffold: stat %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "scaffold: write %s", path)
	}
	return nil
}
