package gen

import (
	"strings"
)

const generatedHeader = "# This file is generated by mkgen; do not edit.\n\n"

// Render serializes the fragment into makefile text
func (f *Fragment) Render() string {
	var sb strings.Builder
	write(&sb, generatedHeader)
	for _, s := range f.Stmts {
		renderStmt(&sb, s)
	}
	return sb.String()
}

func renderStmt(sb *strings.Builder, s Stmt) {
	switch s := s.(type) {
	case Comment:
		writeln(sb, "# ", string(s))
	case Blank:
		writeln(sb)
	case Raw:
		write(sb, string(s))
	case Assign:
		renderAssign(sb, s)
	case TargetAssign:
		line := strings.Join(s.Targets, " ") + ": " + s.Name + " " + s.Op
		if s.Value != "" {
			line += " " + s.Value
		}
		writeln(sb, line)
	case Rule:
		renderRule(sb, s)
	default:
		panic("renderStmt: unreachable")
	}
}

func renderAssign(sb *strings.Builder, a Assign) {
	write(sb, a.Name, " ", a.Op)
	if !a.List {
		if len(a.Values) > 0 {
			write(sb, " ", strings.Join(a.Values, " "))
		}
		writeln(sb)
		return
	}

	if len(a.Values) > 0 {
		values := make([]string, len(a.Values))
		for i, v := range a.Values {
			values[i] = quoteIfNecessary(a.Prefix + v)
		}
		write(sb, " ", strings.Join(values, " \\\n\t"))
	}
	writeln(sb)
	writeln(sb)
}

func renderRule(sb *strings.Builder, r Rule) {
	if r.Comment != "" {
		writeln(sb, "# ", r.Comment)
	}
	if r.Phony {
		writeln(sb, ".PHONY: ", strings.Join(r.Outputs, " "))
	}

	write(sb, r.Outputs[0], ":")
	for _, in := range r.Inputs {
		write(sb, " ", in)
	}
	if r.Force {
		write(sb, " FORCE_DO_CMD")
	}
	if len(r.OrderOnly) > 0 {
		write(sb, " |")
		for _, in := range r.OrderOnly {
			write(sb, " ", in)
		}
	}
	writeln(sb)

	for _, line := range r.Recipe {
		writeln(sb, "\t", line)
	}
	if len(r.Outputs) > 1 {
		writeln(sb, strings.Join(r.Outputs[1:], " "), ": ", r.Outputs[0])
	}
	writeln(sb)
}
