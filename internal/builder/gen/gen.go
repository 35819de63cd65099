// Package gen turns an ordered target graph into GNU make fragments, one per
// target, plus the root makefile that includes them.
package gen

import (
	"maps"
	"path"
	"slices"

	"github.com/qobs-build/mkgen/internal/graph"
	"github.com/qobs-build/mkgen/internal/msg"
)

// DefaultConfiguration is the configuration name targets get when they declare none
const DefaultConfiguration = "Default"

type Options struct {
	Root      string // rootdir as seen from the root makefile
	OutputDir string // builddir_name, "out" when empty
	Suffix    string // appended to every generated file name
	CC, CXX   string // baked into the root makefile when set
}

type Generator struct {
	opts Options
	ctx  *Context
}

func New(opts Options) *Generator {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "out"
	}
	return &Generator{opts: opts, ctx: NewContext()}
}

// Result is everything one generation run produced
type Result struct {
	Root      *RootFile
	Fragments []*Fragment
	Context   *Context
}

// Generate lowers targets, which must be in dependency order, into fragments.
// Nothing is written to disk.
func (g *Generator) Generate(targets []*graph.Target) (*Result, error) {
	configs := configurationNames(targets)
	root := &RootFile{
		Path:                 "Makefile" + g.opts.Suffix,
		Root:                 g.opts.Root,
		OutputDir:            g.opts.OutputDir,
		DefaultConfiguration: defaultConfiguration(targets),
		CC:                   g.opts.CC,
		CXX:                  g.opts.CXX,
	}

	fragments := make([]*Fragment, 0, len(targets))
	for _, t := range targets {
		frag, err := g.generateTarget(t, configs)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
		root.Includes = append(root.Includes, frag.Path)
	}
	return &Result{Root: root, Fragments: fragments, Context: g.ctx}, nil
}

func (g *Generator) generateTarget(t *graph.Target, configs []string) (*Fragment, error) {
	frag := &Fragment{
		Target: t.Name,
		Type:   t.Type,
		Path:   path.Join(t.Name.Dir(), t.Name.Target+g.opts.Suffix+".mk"),
	}
	msg.Verbose("Generating %s", frag.Path)
	if !t.Type.Valid() {
		return nil, unknownType(t)
	}
	if err := g.ctx.claim(frag.Path, t.Name); err != nil {
		return nil, err
	}

	deps, linkDeps, err := Resolve(g.ctx, t)
	if err != nil {
		return nil, err
	}
	frag.Deps, frag.LinkDeps = deps, linkDeps

	if frag.Output, err = computeOutput(t); err != nil {
		return nil, err
	}
	if frag.Output != "" {
		if err := g.ctx.claim(frag.Output, t.Name); err != nil {
			return nil, err
		}
	}

	w := &writer{ctx: g.ctx, t: t, dir: t.Name.Dir(), configs: configs, frag: frag}
	if err := w.writeActions(); err != nil {
		return nil, err
	}
	if err := w.writeRules(); err != nil {
		return nil, err
	}
	if err := w.writeCopies(); err != nil {
		return nil, err
	}
	w.writeSources(deps)
	if err := w.writeTarget(deps, append(w.extraLinkDeps, linkDeps...)); err != nil {
		return nil, err
	}
	frag.ExtraSources = w.extraSources
	frag.ExtraOutputs = w.extraOutputs

	frag.PublishedLinkDeps = publishedLinkDeps(t.Type, frag.Output, linkDeps)
	if err := g.ctx.Publish(t.Name, frag.Output, frag.PublishedLinkDeps); err != nil {
		return nil, err
	}
	return frag, nil
}

// configurationNames is the sorted union of configuration names of all targets
func configurationNames(targets []*graph.Target) []string {
	names := make(map[string]struct{})
	for _, t := range targets {
		for name := range t.Configurations {
			names[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names))
}

// defaultConfiguration is the first default that is not DefaultConfiguration
func defaultConfiguration(targets []*graph.Target) string {
	for _, t := range targets {
		if t.DefaultConfiguration != "" && t.DefaultConfiguration != DefaultConfiguration {
			return t.DefaultConfiguration
		}
	}
	return DefaultConfiguration
}

// writer builds the fragment of a single target
type writer struct {
	ctx     *Context
	t       *graph.Target
	dir     string
	configs []string
	frag    *Fragment

	extraSources  []string
	extraOutputs  []string
	extraLinkDeps []string
}

func (w *writer) emit(s ...Stmt) {
	w.frag.Stmts = append(w.frag.Stmts, s...)
}

func (w *writer) comment(text string) { w.emit(Comment(text)) }

func (w *writer) blank() { w.emit(Blank{}) }

func (w *writer) assign(name, op string, values ...string) {
	w.emit(Assign{Name: name, Op: op, Values: values})
}

// list writes name := values, one value per line
func (w *writer) list(name string, values []string, prefix string) {
	w.emit(Assign{Name: name, Op: ":=", Values: values, Prefix: prefix, List: true})
}

// doCmd writes a rule whose recipe runs cmd_<command> through do_cmd, so it
// reruns when the command line changes as well as when an input changes
func (w *writer) doCmd(outputs, inputs []string, command, comment string) {
	w.emit(Rule{
		Outputs: outputs,
		Inputs:  inputs,
		Recipe:  []string{"$(call do_cmd," + command + ")"},
		Force:   true,
		Comment: comment,
	})
	w.assign("all_targets", "+=", outputs...)
}

// command defines cmd_<name> and quiet_cmd_<name>
func (w *writer) command(name, quiet, cmd string) {
	w.assign("quiet_cmd_"+name, "=", escapeMake(quiet))
	w.assign("cmd_"+name, "=", escapeMake(cmd))
	w.frag.Commands = append(w.frag.Commands, name)
}

func (w *writer) claim(name string) error {
	return w.ctx.claim(name, w.t.Name)
}

// cdDir is the directory action commands run in
func (w *writer) cdDir() string {
	if w.dir == "" {
		return "."
	}
	return w.dir
}
