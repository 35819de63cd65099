package graph

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// ExpandGlobs replaces source and rule_sources patterns with the files they
// match below each target's directory. Entries containing make variables are
// left alone. Matches are sorted so generation stays reproducible.
func (g *Graph) ExpandGlobs() error {
	for _, name := range g.Order {
		t := g.Targets[name]
		dir := filepath.Join(g.Root, filepath.FromSlash(name.Dir()))

		sources, err := expandPatterns(dir, t.Sources)
		if err != nil {
			return fmt.Errorf("target %s: sources: %w", name, err)
		}
		t.Sources = sources

		for i := range t.Rules {
			ruleSources, err := expandPatterns(dir, t.Rules[i].Sources)
			if err != nil {
				return fmt.Errorf("target %s: rule %s: %w", name, t.Rules[i].Name, err)
			}
			t.Rules[i].Sources = ruleSources
		}
	}
	return nil
}

func expandPatterns(dir string, entries []string) ([]string, error) {
	if !slices.ContainsFunc(entries, isPattern) {
		return entries, nil
	}

	fsys := os.DirFS(dir)
	var files []string
	for _, entry := range entries {
		if !isPattern(entry) || strings.Contains(entry, "$(") || path.IsAbs(entry) {
			files = append(files, entry)
			continue
		}
		matches, err := doublestar.Glob(fsys, path.Clean(entry), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", entry, err)
		}
		slices.Sort(matches)
		files = append(files, matches...)
	}
	return files, nil
}
