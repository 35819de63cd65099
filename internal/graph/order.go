package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

func compareNames(a, b QualifiedName) int {
	return cmp.Or(cmp.Compare(a.File, b.File), cmp.Compare(a.Target, b.Target))
}

// Sort returns the targets of g in dependency order, dependencies first. Ties
// are broken by name so the result is deterministic.
func Sort(g *Graph) ([]QualifiedName, error) {
	graph := make(map[QualifiedName][]QualifiedName) // target -> targets that depend on it
	inDegree := make(map[QualifiedName]int)          // target -> dependency count

	for name := range g.Targets {
		graph[name] = []QualifiedName{}
		inDegree[name] = 0
	}

	// build graph
	for name, target := range g.Targets {
		for _, dep := range target.Dependencies {
			if _, ok := g.Targets[dep]; !ok {
				return nil, zerr.With(zerr.Wrap(ErrMissingTarget,
					fmt.Sprintf("target %s lists a non-existent dependency %s", name, dep)), "target", name.String())
			}

			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	// queue of targets with indegree of 0
	var queue []QualifiedName
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	slices.SortFunc(queue, compareNames)

	var sortedOrder []QualifiedName

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		sortedOrder = append(sortedOrder, u)

		slices.SortFunc(graph[u], compareNames)

		// for each target v that depends on u
		var ready []QualifiedName
		for _, v := range graph[u] {
			inDegree[v]--
			// if v no longer has any unmet dependencies, add it to the queue
			if inDegree[v] == 0 {
				ready = append(ready, v)
			}
		}
		queue = append(queue, ready...)
	}

	// check cycles
	if len(sortedOrder) != len(g.Targets) {
		var cycleNodes []string
		for name, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, name.String())
			}
		}
		slices.Sort(cycleNodes)
		return nil, zerr.With(zerr.Wrap(ErrCycle,
			"involving targets: "+strings.Join(cycleNodes, ", ")), "targets", cycleNodes)
	}

	return sortedOrder, nil
}

// explicitOrder validates an order list given in the graph file. The list must
// name every target exactly once; whether it is topological is checked by the
// generator, which treats a bad order as a precondition failure.
func explicitOrder(g *Graph, order []string) ([]QualifiedName, error) {
	seen := make(map[QualifiedName]bool, len(order))
	names := make([]QualifiedName, 0, len(order))
	for _, s := range order {
		name, err := ParseQualifiedName(s)
		if err != nil {
			return nil, fmt.Errorf("order: %w", err)
		}
		if _, ok := g.Targets[name]; !ok {
			return nil, zerr.With(zerr.Wrap(ErrMissingTarget, "order lists "+s), "target", s)
		}
		if seen[name] {
			return nil, fmt.Errorf("order lists %s twice", s)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) != len(g.Targets) {
		var missing []string
		for name := range g.Targets {
			if !seen[name] {
				missing = append(missing, name.String())
			}
		}
		slices.Sort(missing)
		return nil, zerr.With(zerr.Wrap(ErrMissingTarget,
			"order does not list "+strings.Join(missing, ", ")), "targets", missing)
	}
	return names, nil
}
