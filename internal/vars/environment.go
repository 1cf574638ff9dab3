// Package vars resolves the layered variable environment a run executes
// under: OS environment variables overridden and extended by manifest
// variables, which may be literals, ${NAME} references, or $(command)
// shell directives. It also exposes the generic placeholder substitution
// used by every component that expands argument templates.
package vars

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Environment is the fully resolved name→value mapping for a run. It is
// built once by Resolve, is immutable afterwards, and is shared by
// reference across every job.
type Environment struct {
	// manifestNames preserves the manifest declaration order so audit
	// output and Slice are deterministic.
	manifestNames []string
	values        map[string]string
}

// Lookup returns the resolved value for a variable name.
func (e *Environment) Lookup(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	value, ok := e.values[name]
	return value, ok
}

// ManifestNames returns the manifest-declared variable names in
// declaration order.
func (e *Environment) ManifestNames() []string {
	if e == nil || len(e.manifestNames) == 0 {
		return nil
	}
	out := make([]string, len(e.manifestNames))
	copy(out, e.manifestNames)
	return out
}

// Slice renders the environment as "NAME=value" entries suitable for
// exec.Cmd.Env. Entries are sorted by name so output is deterministic.
func (e *Environment) Slice() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.values))
	for name, value := range e.values {
		out = append(out, name+"="+value)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of resolved variables, OS entries included.
func (e *Environment) Len() int {
	if e == nil {
		return 0
	}
	return len(e.values)
}

// Audit echoes the manifest-defined portion of the resolved mapping so
// operators can verify what a run will execute with.
func (e *Environment) Audit(logger *log.Logger) {
	if e == nil || logger == nil {
		return
	}
	for _, name := range e.manifestNames {
		logger.Debug("resolved variable", "name", name, "value", e.values[name])
	}
}

// RawVar is one unresolved manifest variable entry.
type RawVar struct {
	Name  string
	Value string
}

// RawVars preserves manifest declaration order, which a plain Go map
// would lose. Resolution order follows declaration order.
type RawVars []RawVar

// UnmarshalYAML decodes a YAML mapping while retaining key order.
func (r *RawVars) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("vars: variables must be a mapping, got %s", nodeKind(node))
	}
	out := make(RawVars, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]
		if valueNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("vars: variable %q must be a string", keyNode.Value)
		}
		out = append(out, RawVar{Name: keyNode.Value, Value: valueNode.Value})
	}
	*r = out
	return nil
}

// MarshalYAML renders the variables back as an ordered mapping.
func (r RawVars) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range r {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: v.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v.Value},
		)
	}
	return node, nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "document"
	}
}

func environFromSlice(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		values[name] = value
	}
	return values
}
