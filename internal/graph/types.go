// Package graph holds the resolved target graph that mkgen turns into makefiles,
// and the loader that reads it from a TOML, YAML or JSON file.
package graph

import (
	"fmt"
	"path"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrUnknownTargetType is returned for a type string outside the closed set of target types.
	ErrUnknownTargetType = zerr.New("unknown target type")

	// ErrBadQualifiedName is returned for a target identifier that is not of the form "file:target".
	ErrBadQualifiedName = zerr.New("malformed qualified target name")

	// ErrMissingTarget is returned when a dependency or order entry names a target that is not in the graph.
	ErrMissingTarget = zerr.New("missing target")

	// ErrCycle is returned when the dependency graph cannot be ordered.
	ErrCycle = zerr.New("dependency cycle")
)

// TargetType is the closed set of things a target can produce
type TargetType int

const (
	Executable TargetType = iota
	StaticLibrary
	SharedLibrary
	LoadableModule
	None
	Settings
)

var targetTypeNames = [...]string{
	Executable:     "executable",
	StaticLibrary:  "static_library",
	SharedLibrary:  "shared_library",
	LoadableModule: "loadable_module",
	None:           "none",
	Settings:       "settings",
}

func (t TargetType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TargetType(%d)", int(t))
	}
	return targetTypeNames[t]
}

// Valid reports whether t is one of the declared constants
func (t TargetType) Valid() bool {
	return t >= 0 && int(t) < len(targetTypeNames)
}

// ParseTargetType maps a type string to a TargetType
func ParseTargetType(s string) (TargetType, error) {
	for i, name := range targetTypeNames {
		if name == s {
			return TargetType(i), nil
		}
	}
	return 0, zerr.With(zerr.Wrap(ErrUnknownTargetType, fmt.Sprintf("%q", s)), "type", s)
}

// QualifiedName identifies a target across the whole graph: the file that
// declares it (relative to the root) plus its name.
type QualifiedName struct {
	File   string
	Target string
}

// ParseQualifiedName parses "dir/file.gyp:target"
func ParseQualifiedName(s string) (QualifiedName, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return QualifiedName{}, zerr.With(zerr.Wrap(ErrBadQualifiedName, fmt.Sprintf("%q", s)), "name", s)
	}
	return QualifiedName{File: path.Clean(s[:i]), Target: s[i+1:]}, nil
}

func (q QualifiedName) String() string { return q.File + ":" + q.Target }

// Dir is the declaring file's directory relative to the root, "" for the root itself
func (q QualifiedName) Dir() string {
	dir := path.Dir(q.File)
	if dir == "." {
		return ""
	}
	return dir
}

// Configuration is one named flag variant of a target
type Configuration struct {
	Defines     []string
	Cflags      []string // C and C++
	CflagsC     []string // C only
	CflagsCC    []string // C++ only
	IncludeDirs []string
	Ldflags     []string
	Libraries   []string
}

// Action is a command run once per target with declared inputs and outputs
type Action struct {
	Name                    string
	Inputs                  []string
	Outputs                 []string
	Invocation              []string
	Message                 string
	ProcessOutputsAsSources bool
}

// Rule is a command applied once per matched source file. Output templates
// may contain RuleInputRoot.
type Rule struct {
	Name                    string
	Extension               string
	Sources                 []string
	Outputs                 []string
	Inputs                  []string
	Invocation              []string
	Message                 string
	ProcessOutputsAsSources bool
}

// Placeholders understood in rule outputs and invocations
const (
	RuleInputRoot = "<(RULE_INPUT_ROOT)"
	RuleInputPath = "<(RULE_INPUT_PATH)"
	RuleInputExt  = "<(RULE_INPUT_EXT)"
	RuleInputName = "<(RULE_INPUT_NAME)"
)

// Copy copies Files into Destination
type Copy struct {
	Destination string
	Files       []string
}

// Target is the resolved, immutable description of one buildable unit
type Target struct {
	Name                 QualifiedName
	Type                 TargetType
	ProductName          string
	ProductDir           string
	Sources              []string
	Actions              []Action
	Rules                []Rule
	Copies               []Copy
	Dependencies         []QualifiedName
	Libraries            []string
	Configurations       map[string]Configuration
	DefaultConfiguration string
}

// Graph is the whole input: targets plus a topological order over them
type Graph struct {
	Root    string
	Order   []QualifiedName
	Targets map[QualifiedName]*Target
	Flags   map[string]string
}

// Ordered returns the targets in Order
func (g *Graph) Ordered() []*Target {
	targets := make([]*Target, 0, len(g.Order))
	for _, name := range g.Order {
		targets = append(targets, g.Targets[name])
	}
	return targets
}
