package gen

// writeSources emits the per-configuration compiler flag blocks, the object
// list and the rules that order compilation after everything it may need.
func (w *writer) writeSources(deps []string) {
	sources := append(absolutifyAll(w.dir, w.t.Sources), w.extraSources...)
	if len(sources) == 0 {
		return
	}

	// Every configuration known to the run gets a block, so a configuration
	// this target lacks reads as empty instead of the previous fragment's value.
	for _, name := range w.configs {
		config := w.t.Configurations[name]
		w.list("DEFS_"+name, config.Defines, "-D")
		w.comment("Flags passed to both C and C++ files.")
		w.list("CFLAGS_"+name, config.Cflags, "")
		w.comment("Flags passed to only C (and not C++) files.")
		w.list("CFLAGS_C_"+name, config.CflagsC, "")
		w.comment("Flags passed to only C++ (and not C) files.")
		w.list("CFLAGS_CC_"+name, config.CflagsCC, "")
		w.list("INCS_"+name, absolutifyAll(w.dir, config.IncludeDirs), "-I")
	}

	var objs []string
	for _, source := range sources {
		if compilable(source) {
			objs = append(objs, objectify(objectFile(source)))
		}
	}
	w.frag.Objects = objs
	w.list("OBJS", objs, "")
	if len(objs) == 0 {
		return
	}

	w.comment("Add to the list of files we specially track dependencies for.")
	w.assign("all_targets", "+=", "$(OBJS)")
	w.blank()

	// Dependency outputs only gate ordering; header changes are caught by the
	// per-object dependency files.
	if len(deps) > 0 {
		w.emit(Rule{
			Outputs:   []string{"$(OBJS)"},
			OrderOnly: deps,
			Comment:   "Make sure our dependencies are built before any of us.",
		})
	}
	if len(w.extraOutputs) > 0 {
		w.emit(Rule{
			Outputs:   []string{"$(OBJS)"},
			OrderOnly: w.extraOutputs,
			Comment:   "Make sure our actions/rules run before any of us.",
		})
	}
	w.extraLinkDeps = append(w.extraLinkDeps, "$(OBJS)")

	w.comment("CFLAGS et al overrides must be target-local.")
	w.comment(`See "Target-specific Variable Values" in the GNU Make manual.`)
	objsTarget := []string{"$(OBJS)"}
	w.emit(TargetAssign{
		Targets: objsTarget,
		Name:    "CFLAGS",
		Op:      ":=",
		Value:   "$(CFLAGS_$(BUILDTYPE)) $(CFLAGS_C_$(BUILDTYPE)) $(DEFS_$(BUILDTYPE)) $(INCS_$(BUILDTYPE))",
	})
	w.emit(TargetAssign{
		Targets: objsTarget,
		Name:    "CXXFLAGS",
		Op:      ":=",
		Value:   "$(CFLAGS_$(BUILDTYPE)) $(CFLAGS_CC_$(BUILDTYPE)) $(DEFS_$(BUILDTYPE)) $(INCS_$(BUILDTYPE))",
	})
	w.blank()
}
