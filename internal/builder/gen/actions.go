package gen

import (
	"path"
	"strings"

	"go.trai.ch/zerr"

	"github.com/qobs-build/mkgen/internal/graph"
)

// writeActions lowers the target's actions. Actions come first since they can
// generate sources for the rules and objects below.
func (w *writer) writeActions() error {
	for _, action := range w.t.Actions {
		name := w.t.Name.Target + "_" + action.Name
		if err := w.claim("cmd_" + name); err != nil {
			return err
		}
		if len(action.Outputs) == 0 {
			err := zerr.Wrap(ErrInvalidSpec, "action "+action.Name+" of "+w.t.Name.String()+" has no outputs")
			return zerr.With(err, "target", w.t.Name.String())
		}
		w.comment(`### Rules for action "` + action.Name + `":`)

		var dirs orderedSet
		outputs := make([]string, len(action.Outputs))
		for i, out := range action.Outputs {
			if dir := path.Dir(out); dir != "." {
				dirs.add(dir)
			}
			// Outputs named .bogus always rebuild; the file that lands on disk is the header.
			if strings.HasSuffix(out, ".bogus") {
				out = strings.TrimSuffix(out, ".bogus") + ".h"
			}
			outputs[i] = absolutify(w.dir, out)
		}
		if action.ProcessOutputsAsSources {
			w.extraSources = append(w.extraSources, outputs...)
		}

		message := action.Message
		if message == "" {
			message = name
		}
		command := encodeShellList(action.Invocation)
		if dirs.len() > 0 {
			command = "mkdir -p " + strings.Join(dirs.items, " ") + "; " + command
		}
		w.command(name, "ACTION "+message+" $@", "cd "+w.cdDir()+"; "+command)
		w.blank()

		// The command runs from the declaring directory, so obj has to be absolute for it.
		w.emit(TargetAssign{Targets: outputs, Name: "obj", Op: ":=", Value: "$(abs_obj)"})
		w.doCmd(outputs, absolutifyAll(w.dir, action.Inputs), name, "")

		variable := "action_" + name + "_outputs"
		w.assign(variable, ":=", outputs...)
		w.extraOutputs = append(w.extraOutputs, "$("+variable+")")
		w.blank()
	}
	return nil
}

// writeRules lowers per-source rules into one sub-rule per matched source.
// Rule commands run from the root.
func (w *writer) writeRules() error {
	for _, rule := range w.t.Rules {
		name := w.t.Name.Target + "_" + rule.Name
		if err := w.claim("cmd_" + name); err != nil {
			return err
		}
		if len(rule.Outputs) == 0 {
			err := zerr.Wrap(ErrInvalidSpec, "rule "+rule.Name+" of "+w.t.Name.String()+" has no outputs")
			return zerr.With(err, "target", w.t.Name.String())
		}
		w.comment("### Generated for rule " + name + ":")

		var allOutputs []string
		var dirs orderedSet
		for _, source := range w.ruleSources(rule) {
			base := path.Base(source)
			stem := strings.TrimSuffix(base, path.Ext(base))

			outputs := make([]string, len(rule.Outputs))
			for i, tmpl := range rule.Outputs {
				out := absolutify(w.dir, strings.ReplaceAll(tmpl, graph.RuleInputRoot, stem))
				if dir := path.Dir(out); dir != "." {
					dirs.add(dir)
				}
				outputs[i] = out
			}
			if rule.ProcessOutputsAsSources {
				w.extraSources = append(w.extraSources, outputs...)
			}
			allOutputs = append(allOutputs, outputs...)

			inputs := absolutifyAll(w.dir, append([]string{source}, rule.Inputs...))
			recipe := []string{"$(call do_cmd," + name + ")"}
			if isGrit(rule) {
				// grit leaves the mtime alone when the content is unchanged
				recipe = append(recipe, "@touch --no-create $@")
			}
			w.emit(Rule{Outputs: outputs, Inputs: inputs, Recipe: recipe, Force: true})
			w.assign("all_targets", "+=", outputs...)
		}
		w.blank()

		variable := "rule_" + name + "_outputs"
		w.list(variable, allOutputs, "")
		w.extraOutputs = append(w.extraOutputs, "$("+variable+")")

		command := encodeShellList(w.ruleInvocation(rule.Invocation))
		if dirs.len() > 0 {
			command = "mkdir -p " + strings.Join(dirs.items, " ") + "; " + command
		}
		w.command(name, "RULE "+name+" $@", command)
		w.blank()
	}
	return nil
}

// ruleSources returns the rule's own sources, or the target's sources with
// the rule's extension when it lists none
func (w *writer) ruleSources(rule graph.Rule) []string {
	if len(rule.Sources) > 0 || rule.Extension == "" {
		return rule.Sources
	}
	var matched []string
	for _, source := range w.t.Sources {
		if strings.TrimPrefix(path.Ext(source), ".") == rule.Extension {
			matched = append(matched, source)
		}
	}
	return matched
}

var ruleInputVars = strings.NewReplacer(
	graph.RuleInputRoot, "$(basename $(notdir $<))",
	graph.RuleInputPath, "$<",
	graph.RuleInputExt, "$(suffix $<)",
	graph.RuleInputName, "$(notdir $<)",
)

// ruleInvocation rewrites path-like arguments relative to the root and maps
// the placeholders to automatic variables of the sub-rule being run
func (w *writer) ruleInvocation(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if (strings.Contains(arg, "/") || strings.Contains(arg, ".h.")) && !strings.HasPrefix(arg, "<(") {
			arg = absolutify(w.dir, arg)
		}
		out[i] = ruleInputVars.Replace(arg)
	}
	return out
}

func isGrit(rule graph.Rule) bool {
	if rule.Name == "grit" {
		return true
	}
	for i, arg := range rule.Invocation {
		if i > 1 {
			break
		}
		if base := path.Base(arg); base == "grit" || base == "grit.py" {
			return true
		}
	}
	return false
}

// writeCopies emits one copy rule per file, collected under <target>_copies
func (w *writer) writeCopies() error {
	if len(w.t.Copies) == 0 {
		return nil
	}
	variable := w.t.Name.Target + "_copies"
	if err := w.claim(variable); err != nil {
		return err
	}
	w.comment("### Generated for copy rule.")

	var outputs []string
	for _, c := range w.t.Copies {
		destination := absolutify(w.dir, c.Destination)
		for _, file := range c.Files {
			source := absolutify(w.dir, file)
			output := path.Join(destination, path.Base(source))
			if err := w.claim(output); err != nil {
				return err
			}
			w.doCmd([]string{output}, []string{source}, "copy", "")
			outputs = append(outputs, output)
		}
	}
	w.assign(variable, "=", outputs...)
	w.extraOutputs = append(w.extraOutputs, "$("+variable+")")
	w.blank()
	return nil
}
