package gen

import (
	"slices"

	"github.com/qobs-build/mkgen/internal/graph"
)

// Stmt is one element of a generated makefile
type Stmt interface{ stmt() }

// Comment is written as "# text"
type Comment string

// Blank is an empty line
type Blank struct{}

// Assign is a global variable assignment. List assignments are written one
// value per continuation line, each value prefixed with Prefix.
type Assign struct {
	Name   string
	Op     string // ":=", "=", "+=", "?="
	Values []string
	Prefix string
	List   bool
}

// TargetAssign is a target-specific variable binding ("out: NAME := value"),
// visible only while make builds Targets
type TargetAssign struct {
	Targets []string
	Name    string
	Op      string
	Value   string
}

// Rule is one make rule. With Force set, FORCE_DO_CMD is added as a normal
// prerequisite so the recipe is always evaluated and do_cmd can compare
// command lines. Rules with several outputs run the recipe once for the first
// output; the others are made to depend on it.
type Rule struct {
	Outputs   []string
	Inputs    []string
	OrderOnly []string
	Recipe    []string
	Force     bool
	Phony     bool
	Comment   string
}

// Raw is written verbatim
type Raw string

func (Comment) stmt()      {}
func (Blank) stmt()        {}
func (Assign) stmt()       {}
func (TargetAssign) stmt() {}
func (Rule) stmt()         {}
func (Raw) stmt()          {}

// Fragment is the generated makefile of one target plus what the generator
// learned about it while writing it
type Fragment struct {
	Target graph.QualifiedName
	Type   graph.TargetType
	Path   string // relative to the root

	Output            string   // "" for settings
	Deps              []string // build-order set
	LinkDeps          []string // link-order set of the dependencies
	PublishedLinkDeps []string // what dependents inherit
	Objects           []string
	ExtraSources      []string
	ExtraOutputs      []string // aggregate variables of actions, rules and copies
	Commands          []string // cmd_<name> variables defined by this fragment

	Stmts []Stmt
}

// Rules returns every rule in the fragment in emission order
func (f *Fragment) Rules() []Rule {
	var rules []Rule
	for _, s := range f.Stmts {
		if r, ok := s.(Rule); ok {
			rules = append(rules, r)
		}
	}
	return rules
}

// RuleFor returns the first rule that lists output among its outputs
func (f *Fragment) RuleFor(output string) (Rule, bool) {
	for _, r := range f.Rules() {
		if slices.Contains(r.Outputs, output) && len(r.Recipe) > 0 {
			return r, true
		}
	}
	return Rule{}, false
}

// Assign returns the last global assignment to name
func (f *Fragment) Assign(name string) (Assign, bool) {
	var found Assign
	ok := false
	for _, s := range f.Stmts {
		if a, isAssign := s.(Assign); isAssign && a.Name == name {
			found, ok = a, true
		}
	}
	return found, ok
}

// TargetAssigns returns the target-specific bindings of name
func (f *Fragment) TargetAssigns(name string) []TargetAssign {
	var found []TargetAssign
	for _, s := range f.Stmts {
		if a, ok := s.(TargetAssign); ok && a.Name == name {
			found = append(found, a)
		}
	}
	return found
}

// RootFile is the top-level makefile that includes every fragment
type RootFile struct {
	Path                 string
	Root                 string
	OutputDir            string
	DefaultConfiguration string
	CC, CXX              string
	Includes             []string
}
