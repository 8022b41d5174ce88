// Package pkggraph implements the workspace package graph and the
// dependency-level task queue that the scope resolver and orchestrator
// consume: an in-memory adjacency-list DAG with memoized transitive
// closures, and a Kahn's-algorithm layering that decides which packages
// may run concurrently.
package pkggraph

import (
	"sort"
	"sync"

	"github.com/scopeforge/reposcope/internal/rpath"
)

// Package is one node in the graph: a name and the directory (relative to
// the workspace root) it lives in.
type Package struct {
	Name string
	Dir  rpath.AnchoredSystemPath
}

// Graph is an adjacency-list DAG, built once by a single goroutine and
// read-only (hence safe for concurrent readers) from then on.
type Graph struct {
	packages map[string]Package
	edges    map[string]map[string]bool // name -> direct dependency names

	mu         sync.Mutex // guards the memoized closures below
	depClosure map[string][]string
	depntClos  map[string][]string
	reverseIdx map[string][]string // name -> direct dependents, built once
}

// NewGraph builds an empty graph ready for AddPackage/AddDependency.
func NewGraph() *Graph {
	return &Graph{
		packages:   map[string]Package{},
		edges:      map[string]map[string]bool{},
		depClosure: map[string][]string{},
		depntClos:  map[string][]string{},
	}
}

// AddPackage registers pkg. Calling it twice with the same name replaces
// the prior entry.
func (g *Graph) AddPackage(pkg Package) {
	g.packages[pkg.Name] = pkg
	if g.edges[pkg.Name] == nil {
		g.edges[pkg.Name] = map[string]bool{}
	}
}

// AddDependency records that from depends on to. Both names must already
// be registered via AddPackage.
func (g *Graph) AddDependency(from, to string) {
	if g.edges[from] == nil {
		g.edges[from] = map[string]bool{}
	}
	g.edges[from][to] = true
}

// ByName looks up a package by name.
func (g *Graph) ByName(name string) (Package, bool) {
	p, ok := g.packages[name]
	return p, ok
}

// All returns every package, sorted by name so no caller's result ever
// depends on map iteration order.
func (g *Graph) All() []Package {
	out := make([]Package, 0, len(g.packages))
	for _, p := range g.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DirectDependencies returns name's immediate dependency names, sorted.
func (g *Graph) DirectDependencies(name string) []string {
	return sortedKeys(g.edges[name])
}

// DirectDependents returns the names of packages that directly depend on
// name, sorted.
func (g *Graph) DirectDependents(name string) []string {
	g.buildReverseIndexOnce()
	out := append([]string(nil), g.reverseIdx[name]...)
	sort.Strings(out)
	return out
}

func (g *Graph) buildReverseIndexOnce() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reverseIdx != nil {
		return
	}
	g.reverseIdx = map[string][]string{}
	for from, tos := range g.edges {
		for to := range tos {
			g.reverseIdx[to] = append(g.reverseIdx[to], from)
		}
	}
}

// Dependencies returns name's transitive dependency set (sorted,
// memoized), excluding name itself.
func (g *Graph) Dependencies(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cached, ok := g.depClosure[name]; ok {
		return cached
	}
	seen := map[string]bool{}
	g.collectDeps(name, seen)
	delete(seen, name)
	out := sortedSet(seen)
	g.depClosure[name] = out
	return out
}

func (g *Graph) collectDeps(name string, seen map[string]bool) {
	for dep := range g.edges[name] {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		g.collectDeps(dep, seen)
	}
}

// Dependents returns name's transitive dependent set (sorted, memoized),
// excluding name itself.
func (g *Graph) Dependents(name string) []string {
	g.buildReverseIndexOnce()
	g.mu.Lock()
	defer g.mu.Unlock()
	if cached, ok := g.depntClos[name]; ok {
		return cached
	}
	seen := map[string]bool{}
	g.collectDependents(name, seen)
	delete(seen, name)
	out := sortedSet(seen)
	g.depntClos[name] = out
	return out
}

func (g *Graph) collectDependents(name string, seen map[string]bool) {
	for _, from := range g.reverseIdx[name] {
		if seen[from] {
			continue
		}
		seen[from] = true
		g.collectDependents(from, seen)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
