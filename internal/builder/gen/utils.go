package gen

import (
	"path"
	"regexp"
	"strings"
)

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}

func writeln(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
	sb.WriteByte('\n')
}

// quoteIfNecessary wraps list values containing a double quote so they survive the shell
func quoteIfNecessary(s string) string {
	if strings.Contains(s, `"`) {
		s = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

var (
	shellNeedsQuote = regexp.MustCompile(`[\t\n #$%&'()*;<=>?\[{|}~]|^$`)
	shellEscaper    = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`")
)

// encodeShellArg quotes one argument for a POSIX shell. Double quotes are used
// so make variables inside the argument are still expanded by make first.
func encodeShellArg(arg string) string {
	quote := ""
	if shellNeedsQuote.MatchString(arg) {
		quote = `"`
	}
	return quote + shellEscaper.Replace(arg) + quote
}

func encodeShellList(args []string) string {
	encoded := make([]string, len(args))
	for i, arg := range args {
		encoded[i] = encodeShellArg(arg)
	}
	return strings.Join(encoded, " ")
}

var makeEscaper = strings.NewReplacer("#", `\#`)

// escapeMake keeps a value intact inside a make assignment, where # would
// start a comment
func escapeMake(s string) string { return makeEscaper.Replace(s) }

// isMakeVar reports whether p refers to a make variable and must not be rewritten
func isMakeVar(p string) bool {
	return strings.Contains(p, "$(")
}

// absolutify turns a path relative to dir into a root-relative path
func absolutify(dir, p string) string {
	if isMakeVar(p) {
		return p
	}
	return path.Clean(path.Join(dir, p))
}

func absolutifyAll(dir string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = absolutify(dir, p)
	}
	return out
}

// objectify places a root-relative path under $(obj)
func objectify(p string) string {
	if isMakeVar(p) {
		return p
	}
	return "$(obj)/" + p
}

var compilableExts = []string{".c", ".cc", ".cpp", ".cxx", ".s", ".S"}

// compilable reports whether a source file is compiled into an object file
func compilable(filename string) bool {
	for _, ext := range compilableExts {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

func objectFile(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename)) + ".o"
}

// orderedSet keeps first-insertion order
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(items ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, item := range items {
		if _, ok := s.seen[item]; ok {
			continue
		}
		s.seen[item] = struct{}{}
		s.items = append(s.items, item)
	}
}

func (s *orderedSet) len() int { return len(s.items) }
