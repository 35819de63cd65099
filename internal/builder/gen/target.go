package gen

import (
	"path"

	"go.trai.ch/zerr"

	"github.com/qobs-build/mkgen/internal/graph"
)

func unknownType(t *graph.Target) error {
	err := zerr.Wrap(ErrUnknownTargetType, t.Type.String()+" for "+t.Name.String())
	return zerr.With(zerr.With(err, "target", t.Name.String()), "type", t.Type.String())
}

// computeOutput returns the path of the artifact t produces, e.g.
// $(obj)/base/libbase.a for the static library base declared in base/.
// settings targets produce nothing.
func computeOutput(t *graph.Target) (string, error) {
	var file string
	switch t.Type {
	case graph.StaticLibrary:
		file = "lib" + t.Name.Target + ".a"
	case graph.SharedLibrary, graph.LoadableModule:
		file = "lib" + t.Name.Target + ".so"
	case graph.None:
		file = t.Name.Target + ".stamp"
	case graph.Settings:
		return "", nil
	case graph.Executable:
		file = t.Name.Target
		if t.ProductName != "" {
			file = t.ProductName
		}
	default:
		return "", unknownType(t)
	}

	dir := t.ProductDir
	if dir == "" {
		dir = path.Join("$(obj)", t.Name.Dir())
	}
	return path.Join(dir, file), nil
}

// writeTarget emits the terminal rule of the target and, for installable
// targets, the install copy and the bare-name alias
func (w *writer) writeTarget(deps, linkDeps []string) error {
	output := w.frag.Output
	w.comment("### Rules for final target.")

	if len(w.extraOutputs) > 0 && output != "" {
		w.emit(Rule{
			Outputs:   []string{output},
			OrderOnly: w.extraOutputs,
			Comment:   "Build our special outputs first.",
		})
	}

	if w.t.Type != graph.Settings && w.t.Type != graph.None {
		for _, name := range w.configs {
			config := w.t.Configurations[name]
			w.list("LDFLAGS_"+name, config.Ldflags, "")
			w.list("LIBS_"+name, config.Libraries, "")
		}
		w.list("LIBS", w.t.Libraries, "")
		w.emit(TargetAssign{Targets: []string{output}, Name: "LDFLAGS", Op: ":=", Value: "$(LDFLAGS_$(BUILDTYPE))"})
		w.emit(TargetAssign{Targets: []string{output}, Name: "LIBS", Op: ":=", Value: "$(LIBS) $(LIBS_$(BUILDTYPE))"})
		w.blank()
	}

	switch w.t.Type {
	case graph.Executable:
		w.doCmd([]string{output}, linkDeps, "link", "")
	case graph.StaticLibrary:
		w.doCmd([]string{output}, linkDeps, "alink", "")
	case graph.SharedLibrary, graph.LoadableModule:
		w.doCmd([]string{output}, linkDeps, "solink", "")
	case graph.None:
		w.doCmd([]string{output}, deps, "touch", "")
	case graph.Settings:
		// flags only
	default:
		return unknownType(w.t)
	}

	if w.t.Type != graph.Executable && w.t.Type != graph.LoadableModule {
		return nil
	}
	filename := path.Base(output)
	binpath := "$(builddir)/" + filename
	if binpath != output {
		if err := w.claim(binpath); err != nil {
			return err
		}
		w.doCmd([]string{binpath}, []string{output}, "copy", "Copy this to the binary output path.")
	}
	w.emit(Rule{
		Outputs: []string{filename},
		Inputs:  []string{binpath},
		Phony:   true,
		Comment: "Short alias for building this executable.",
	})
	w.emit(Rule{
		Outputs: []string{"all"},
		Inputs:  []string{binpath},
		Phony:   true,
		Comment: `Add executable to "all" target.`,
	})
	return nil
}
