package builder

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"go.trai.ch/zerr"
)

// ErrNoRootDir is returned when the project root can not be inferred
var ErrNoRootDir = zerr.New("can't determine the project root, pass --depth")

// FindRoot picks the project root every generated path is relative to. An
// explicit depth wins, then the graph's own root key, then the nearest
// ancestor of the graph file named "src", then the enclosing git worktree.
func FindRoot(depth, graphRoot, graphFile string) (string, error) {
	if depth != "" {
		return filepath.Abs(depth)
	}
	if graphRoot != "" {
		return filepath.Abs(graphRoot)
	}

	dir, err := filepath.Abs(filepath.Dir(graphFile))
	if err != nil {
		return "", err
	}
	for d := dir; ; d = filepath.Dir(d) {
		if filepath.Base(d) == "src" {
			return d, nil
		}
		if filepath.Dir(d) == d {
			break
		}
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", zerr.With(zerr.Wrap(ErrNoRootDir, "no src directory or git worktree above "+dir), "graph", graphFile)
	}
	if err != nil {
		return "", fmt.Errorf("while looking for a git worktree above %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		// bare repositories have no worktree to root the build in
		return "", zerr.With(zerr.Wrap(ErrNoRootDir, err.Error()), "graph", graphFile)
	}
	return wt.Filesystem.Root(), nil
}
