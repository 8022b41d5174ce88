package pkggraph

import "sort"

// Queue orders a restricted subset of a Graph's packages into
// dependency levels: Kahn's-algorithm topological layering, ties broken
// alphabetically within a level. Packages in the same level share no
// dependency edges and may run concurrently; a later level must wait
// for every earlier one.
type Queue struct {
	Levels [][]string
}

// NewQueue restricts g to the package names in scope (edges leaving that
// set are ignored, so a scoped subgraph's levels reflect only
// dependencies that are themselves in scope) and computes its dependency
// levels.
func NewQueue(g *Graph, scope []string) *Queue {
	inScope := map[string]bool{}
	for _, n := range scope {
		inScope[n] = true
	}

	remaining := map[string]map[string]bool{}
	for n := range inScope {
		deps := map[string]bool{}
		for dep := range g.edges[n] {
			if inScope[dep] {
				deps[dep] = true
			}
		}
		remaining[n] = deps
	}

	var levels [][]string
	for len(remaining) > 0 {
		var ready []string
		for n, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			// A cycle in the restricted scope: break it by taking every
			// remaining package as one final level rather than looping
			// forever, sorted for determinism.
			for n := range remaining {
				ready = append(ready, n)
			}
		}
		sort.Strings(ready)
		levels = append(levels, ready)
		for _, n := range ready {
			delete(remaining, n)
		}
		for _, deps := range remaining {
			for _, n := range ready {
				delete(deps, n)
			}
		}
	}
	return &Queue{Levels: levels}
}

// Flatten returns every package name in level-then-alphabetical order.
func (q *Queue) Flatten() []string {
	var out []string
	for _, level := range q.Levels {
		out = append(out, level...)
	}
	return out
}
