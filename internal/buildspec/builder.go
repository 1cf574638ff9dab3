// Package buildspec models the typed build/publish configuration a job
// carries and turns it into literal argument vectors for the external
// tools. Builders and publishers are closed variant sets dispatched
// through a shared capability interface; every variant validates at
// construction time, never at process spawn.
package buildspec

import (
	"fmt"

	"github.com/airlift-cli/airlift/internal/vars"
)

// ArgumentSource is the capability every builder/publisher variant
// implements: validate the configuration up front, then emit the
// argument vector for the external tool. Emission order is
// deterministic for identical input.
type ArgumentSource interface {
	Tool() string
	Validate() error
	Args(env *vars.Environment) ([]string, error)
}

// ValidationError reports a configuration that can never produce a
// valid invocation, e.g. a variant-specific flag on the wrong binary
// type or a missing required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "buildspec: " + e.Field + ": " + e.Reason
}

// BuilderKind enumerates the closed builder variant set.
type BuilderKind string

const (
	BuilderAndroid BuilderKind = "android"
	BuilderIOS     BuilderKind = "ios"
	BuilderCustom  BuilderKind = "custom"
)

// Build modes accepted by the platform build tool.
const (
	ModeRelease = "release"
	ModeDebug   = "debug"
	ModeProfile = "profile"
)

// Android binary types.
const (
	BinaryAPK = "apk"
	BinaryAAB = "aab"
	BinaryIPA = "ipa"
)

// BuilderSpec is the tagged union for one build invocation. Kind selects
// the variant; variant-specific fields are only legal for their variant.
type BuilderSpec struct {
	Kind   BuilderKind `yaml:"platform"`
	Preset string      `yaml:"preset,omitempty"`

	// Common fields, shared by every variant.
	BinaryType     string   `yaml:"binary_type,omitempty"`
	BuildMode      string   `yaml:"build_mode,omitempty"`
	Target         string   `yaml:"target,omitempty"`
	Flavor         string   `yaml:"flavor,omitempty"`
	DartDefines    []string `yaml:"dart_defines,omitempty"`
	DartDefineFile string   `yaml:"dart_define_file,omitempty"`
	BuildName      string   `yaml:"build_name,omitempty"`
	BuildNumber    string   `yaml:"build_number,omitempty"`
	NoPub          *bool    `yaml:"no_pub,omitempty"`
	ExtraArgs      []string `yaml:"extra_args,omitempty"`

	// Android only.
	SplitPerABI *bool `yaml:"split_per_abi,omitempty"`

	// iOS only.
	ExportMethod       string `yaml:"export_method,omitempty"`
	ExportOptionsPlist string `yaml:"export_options_plist,omitempty"`

	// Custom only.
	Command     string   `yaml:"tool,omitempty"`
	CommandArgs []string `yaml:"args,omitempty"`
}

// Tool names the external binary this builder invokes.
func (s *BuilderSpec) Tool() string {
	if s.Kind == BuilderCustom {
		return s.Command
	}
	return "flutter"
}

// Validate rejects impossible configurations before anything spawns.
func (s *BuilderSpec) Validate() error {
	switch s.Kind {
	case BuilderAndroid:
		switch s.binaryType() {
		case BinaryAPK:
		case BinaryAAB:
			if s.SplitPerABI != nil && *s.SplitPerABI {
				return &ValidationError{Field: "split_per_abi", Reason: "only valid for binary_type apk"}
			}
		default:
			return &ValidationError{Field: "binary_type", Reason: fmt.Sprintf("%q is not an android binary type (apk, aab)", s.BinaryType)}
		}
		if s.ExportMethod != "" || s.ExportOptionsPlist != "" {
			return &ValidationError{Field: "export_method", Reason: "only valid for ios builders"}
		}
	case BuilderIOS:
		if bt := s.binaryType(); bt != BinaryIPA {
			return &ValidationError{Field: "binary_type", Reason: fmt.Sprintf("%q is not an ios binary type (ipa)", s.BinaryType)}
		}
		if s.SplitPerABI != nil {
			return &ValidationError{Field: "split_per_abi", Reason: "only valid for android builders"}
		}
	case BuilderCustom:
		if s.Command == "" {
			return &ValidationError{Field: "tool", Reason: "required for custom builders"}
		}
	default:
		return &ValidationError{Field: "platform", Reason: fmt.Sprintf("unknown builder platform %q", s.Kind)}
	}
	switch s.BuildMode {
	case "", ModeRelease, ModeDebug, ModeProfile:
	default:
		return &ValidationError{Field: "build_mode", Reason: fmt.Sprintf("%q is not a build mode (release, debug, profile)", s.BuildMode)}
	}
	return nil
}

// Args emits the argument vector. The binary type token comes first,
// then the common flags in a fixed order, then variant-specific flags,
// then extra args. Every token is substituted against the job
// environment before use.
func (s *BuilderSpec) Args(env *vars.Environment) ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var args []string
	switch s.Kind {
	case BuilderAndroid:
		args = append(args, "build", s.binaryTargetToken())
		args = append(args, s.commonArgs()...)
		if s.SplitPerABI != nil && *s.SplitPerABI {
			args = append(args, "--split-per-abi")
		}
	case BuilderIOS:
		args = append(args, "build", "ipa")
		args = append(args, s.commonArgs()...)
		if s.ExportMethod != "" {
			args = append(args, "--export-method", s.ExportMethod)
		}
		if s.ExportOptionsPlist != "" {
			args = append(args, "--export-options-plist="+s.ExportOptionsPlist)
		}
	case BuilderCustom:
		args = append(args, s.CommandArgs...)
	}
	args = append(args, s.ExtraArgs...)
	return substituteAll(args, env)
}

func (s *BuilderSpec) binaryType() string {
	if s.BinaryType != "" {
		return s.BinaryType
	}
	switch s.Kind {
	case BuilderIOS:
		return BinaryIPA
	default:
		return BinaryAPK
	}
}

// binaryTargetToken maps the manifest binary type onto the build tool's
// subcommand vocabulary (aab ships as "appbundle").
func (s *BuilderSpec) binaryTargetToken() string {
	if s.binaryType() == BinaryAAB {
		return "appbundle"
	}
	return BinaryAPK
}

func (s *BuilderSpec) commonArgs() []string {
	var args []string
	mode := s.BuildMode
	if mode == "" {
		mode = ModeRelease
	}
	args = append(args, "--"+mode)
	if s.Target != "" {
		args = append(args, "--target", s.Target)
	}
	if s.Flavor != "" {
		args = append(args, "--flavor", s.Flavor)
	}
	for _, define := range s.DartDefines {
		args = append(args, "--dart-define="+define)
	}
	if s.DartDefineFile != "" {
		args = append(args, "--dart-define-from-file="+s.DartDefineFile)
	}
	if s.BuildName != "" {
		args = append(args, "--build-name="+s.BuildName)
	}
	if s.BuildNumber != "" {
		args = append(args, "--build-number="+s.BuildNumber)
	}
	if s.NoPub != nil && *s.NoPub {
		args = append(args, "--no-pub")
	}
	return args
}

func substituteAll(args []string, env *vars.Environment) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		expanded, err := vars.Substitute(arg, env)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}
