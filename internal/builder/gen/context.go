package gen

import (
	"go.trai.ch/zerr"

	"github.com/qobs-build/mkgen/internal/graph"
)

var (
	// ErrUnorderedGraph is returned when a target is read before it was published,
	// meaning the input order is not a topological sort.
	ErrUnorderedGraph = zerr.New("target graph is not topologically ordered")

	// ErrUnknownTargetType is returned when no output can be computed for a target type.
	ErrUnknownTargetType = zerr.New("unknown target type")

	// ErrDuplicateName is returned when two actions, rules or copy groups map to the same command name.
	ErrDuplicateName = zerr.New("duplicate generated name")

	// ErrAlreadyPublished is returned when a target is published twice.
	ErrAlreadyPublished = zerr.New("target already published")

	// ErrInvalidSpec is returned for a target spec that cannot be lowered into rules.
	ErrInvalidSpec = zerr.New("invalid target spec")
)

type record struct {
	output   string // "" for settings
	linkDeps []string
}

// Context is the resolved build graph: the output path and transitive link
// dependencies of every target processed so far. Each target is published
// exactly once and never changes afterwards.
type Context struct {
	records  map[graph.QualifiedName]record
	order    []graph.QualifiedName
	commands map[string]graph.QualifiedName
}

func NewContext() *Context {
	return &Context{
		records:  make(map[graph.QualifiedName]record),
		commands: make(map[string]graph.QualifiedName),
	}
}

// Publish records the output and link dependencies of name
func (c *Context) Publish(name graph.QualifiedName, output string, linkDeps []string) error {
	if _, ok := c.records[name]; ok {
		return zerr.With(zerr.Wrap(ErrAlreadyPublished, name.String()), "target", name.String())
	}
	c.records[name] = record{output: output, linkDeps: linkDeps}
	c.order = append(c.order, name)
	return nil
}

func (c *Context) lookup(name graph.QualifiedName) (record, error) {
	r, ok := c.records[name]
	if !ok {
		return record{}, zerr.With(zerr.Wrap(ErrUnorderedGraph, name.String()+" is used before it is generated"), "dependency", name.String())
	}
	return r, nil
}

// Output returns the build output of name, "" for targets without an artifact
func (c *Context) Output(name graph.QualifiedName) (string, error) {
	r, err := c.lookup(name)
	return r.output, err
}

// LinkDeps returns what a dependent of name has to link against
func (c *Context) LinkDeps(name graph.QualifiedName) ([]string, error) {
	r, err := c.lookup(name)
	return r.linkDeps, err
}

// Published returns the published targets in publication order
func (c *Context) Published() []graph.QualifiedName {
	return c.order
}

// claim reserves a make-level name for owner. All fragments share one
// namespace, so a name taken by any earlier target is a collision.
func (c *Context) claim(name string, owner graph.QualifiedName) error {
	if prev, ok := c.commands[name]; ok {
		err := zerr.Wrap(ErrDuplicateName, name+" is defined by both "+prev.String()+" and "+owner.String())
		return zerr.With(zerr.With(err, "target", owner.String()), "name", name)
	}
	c.commands[name] = owner
	return nil
}
