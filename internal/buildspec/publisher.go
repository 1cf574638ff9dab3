package buildspec

import (
	"fmt"
	"strings"

	"github.com/airlift-cli/airlift/internal/vars"
)

var (
	_ ArgumentSource = (*BuilderSpec)(nil)
	_ ArgumentSource = (*PublisherSpec)(nil)
)

// PublisherKind enumerates the closed publisher variant set.
type PublisherKind string

const (
	// PublisherFirebase distributes a binary to beta testers.
	PublisherFirebase PublisherKind = "firebase"
	// PublisherFastlane drives a release-automation lane.
	PublisherFastlane PublisherKind = "fastlane"
	// PublisherAppStore uploads a binary to the store.
	PublisherAppStore PublisherKind = "appstore"
)

// PublisherSpec is the tagged union for one publish invocation.
type PublisherSpec struct {
	Kind   PublisherKind `yaml:"target"`
	Preset string        `yaml:"preset,omitempty"`

	// Common fields.
	FilePath   string `yaml:"file_path,omitempty"`
	BinaryType string `yaml:"binary_type,omitempty"`

	// Firebase only.
	AppID        string   `yaml:"app_id,omitempty"`
	Token        string   `yaml:"token,omitempty"`
	Groups       []string `yaml:"groups,omitempty"`
	ReleaseNotes string   `yaml:"release_notes,omitempty"`

	// Fastlane only. Env selects the lane's dotenv environment
	// (fastlane's --env flag).
	Lane string `yaml:"lane,omitempty"`
	Env  string `yaml:"env,omitempty"`

	// App store only.
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	APIIssuer string `yaml:"api_issuer,omitempty"`

	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// Tool names the external binary this publisher invokes.
func (s *PublisherSpec) Tool() string {
	switch s.Kind {
	case PublisherFirebase:
		return "firebase"
	case PublisherFastlane:
		return "fastlane"
	case PublisherAppStore:
		return "xcrun"
	}
	return ""
}

// Validate rejects impossible publisher configurations up front.
func (s *PublisherSpec) Validate() error {
	switch s.Kind {
	case PublisherFirebase:
		if s.FilePath == "" {
			return &ValidationError{Field: "file_path", Reason: "required for firebase publishers"}
		}
		if s.AppID == "" {
			return &ValidationError{Field: "app_id", Reason: "required for firebase publishers"}
		}
	case PublisherFastlane:
		if s.Lane == "" {
			return &ValidationError{Field: "lane", Reason: "required for fastlane publishers"}
		}
	case PublisherAppStore:
		if s.FilePath == "" {
			return &ValidationError{Field: "file_path", Reason: "required for appstore publishers"}
		}
		hasCredentials := s.Username != "" && s.Password != ""
		hasAPIKey := s.APIKey != "" && s.APIIssuer != ""
		if !hasCredentials && !hasAPIKey {
			return &ValidationError{Field: "username", Reason: "appstore publishers need username+password or api_key+api_issuer"}
		}
	default:
		return &ValidationError{Field: "target", Reason: fmt.Sprintf("unknown publisher target %q", s.Kind)}
	}
	return nil
}

// Args emits the publish argument vector, common fields before
// variant-specific ones, every token substituted against the job
// environment.
func (s *PublisherSpec) Args(env *vars.Environment) ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var args []string
	switch s.Kind {
	case PublisherFirebase:
		args = append(args, "appdistribution:distribute", s.FilePath, "--app", s.AppID)
		if s.Token != "" {
			args = append(args, "--token", s.Token)
		}
		if len(s.Groups) > 0 {
			args = append(args, "--groups", strings.Join(s.Groups, ","))
		}
		if s.ReleaseNotes != "" {
			args = append(args, "--release-notes", s.ReleaseNotes)
		}
	case PublisherFastlane:
		args = append(args, s.Lane)
		if s.FilePath != "" {
			args = append(args, "file_path:"+s.FilePath)
		}
		if s.Env != "" {
			args = append(args, "--env", s.Env)
		}
	case PublisherAppStore:
		args = append(args, "altool", "--upload-app", "--file", s.FilePath, "--type", s.storeType())
		if s.Username != "" {
			args = append(args, "--username", s.Username, "--password", s.Password)
		} else {
			args = append(args, "--apiKey", s.APIKey, "--apiIssuer", s.APIIssuer)
		}
	}
	args = append(args, s.ExtraArgs...)
	return substituteAll(args, env)
}

// storeType maps the binary type onto the upload tool's platform
// vocabulary.
func (s *PublisherSpec) storeType() string {
	if s.BinaryType == BinaryAPK || s.BinaryType == BinaryAAB {
		return "android"
	}
	return "ios"
}
