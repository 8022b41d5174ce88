package scope

import (
	"strings"

	"github.com/scopeforge/reposcope/internal/pkggraph"
)

// Inference is the package (if any) that the current working directory
// is most specifically inside, and the directory further directory
// clauses are anchored to.
type Inference struct {
	Name string // "" if cwd is not within any package
	Root string // repo-root-relative, "/"-separated; "" means the repo root
}

// Infer computes package inference for cwd (repo-root-relative,
// "/"-separated, "" meaning the repo root) against graph.
//
// The scan is a full pass tracking the deepest match, never an early
// return on the first qualifying package: with nested packages an early
// return would make the winner depend on iteration order. graph.All()
// yields packages sorted by name, and an equal-depth candidate never
// overwrites an earlier one, so repeated calls return identical
// results.
func Infer(graph *pkggraph.Graph, cwd string) Inference {
	cwd = strings.Trim(cwd, "/")

	var bestName string
	var bestDir string
	bestDepth := -1
	for _, pkg := range graph.All() {
		dir := strings.Trim(pkg.Dir.String(), "/")
		if dir == "." {
			dir = ""
		}
		if !dirContainsOrEquals(dir, cwd) {
			continue
		}
		depth := componentCount(dir)
		if depth > bestDepth {
			bestDepth = depth
			bestName = pkg.Name
			bestDir = dir
		}
	}

	if bestDepth >= 0 {
		return Inference{Name: bestName, Root: bestDir}
	}
	return Inference{Name: "", Root: cwd}
}

// dirContainsOrEquals reports whether cwd is dir itself or a descendant
// of it, compared by path component.
func dirContainsOrEquals(dir, cwd string) bool {
	if dir == "" {
		return true
	}
	if dir == cwd {
		return true
	}
	return strings.HasPrefix(cwd, dir+"/")
}

func componentCount(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}
