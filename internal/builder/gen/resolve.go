package gen

import (
	"github.com/qobs-build/mkgen/internal/graph"
)

// Resolve collects what t has to wait for (deps) and what it has to link
// against (linkDeps). deps always contains every entry of linkDeps. The order
// of linkDeps is the order the linker sees.
func Resolve(ctx *Context, t *graph.Target) (deps, linkDeps []string, err error) {
	var depSet, linkSet orderedSet
	for _, dep := range t.Dependencies {
		output, err := ctx.Output(dep)
		if err != nil {
			return nil, nil, err
		}
		// settings targets produce nothing to wait for
		if output != "" {
			depSet.add(output)
		}
	}
	for _, dep := range t.Dependencies {
		published, err := ctx.LinkDeps(dep)
		if err != nil {
			return nil, nil, err
		}
		linkSet.add(published...)
	}
	depSet.add(linkSet.items...)
	return depSet.items, linkSet.items, nil
}

// publishedLinkDeps is what dependents of a target inherit. A static library
// only hands out its own archive; a shared library also carries everything
// it linked against.
func publishedLinkDeps(typ graph.TargetType, output string, linkDeps []string) []string {
	switch typ {
	case graph.StaticLibrary:
		return []string{output}
	case graph.SharedLibrary:
		return append([]string{output}, linkDeps...)
	default:
		return nil
	}
}
