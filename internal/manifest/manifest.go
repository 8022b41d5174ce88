// Package manifest loads the workspace description reposcope needs to
// build an internal/pkggraph.Graph plus per-task command/input/output
// declarations. reposcope does not parse package.json/lockfile graphs
// itself; it reads its own small JSON manifest (reposcope.json), a thin
// reading layer in front of the real engine.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/scopeforge/reposcope/internal/pkggraph"
	"github.com/scopeforge/reposcope/internal/rpath"
)

// Task is one named, repo-wide task definition: the shell command every
// package declaring the task runs, plus the glob sets used to compute its
// cache key (Inputs) and the files it produces (Outputs).
type Task struct {
	Command string   `json:"command"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// PackageDef is one workspace package entry.
type PackageDef struct {
	Dir       string   `json:"dir"`
	DependsOn []string `json:"dependsOn"`
	Tasks     []string `json:"tasks"` // task names this package declares; empty means all
}

// Manifest is reposcope.json's top-level shape.
type Manifest struct {
	Packages map[string]PackageDef `json:"packages"`
	Tasks    map[string]Task       `json:"tasks"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return &m, nil
}

// Graph builds an internal/pkggraph.Graph from the manifest's package
// entries, validating that every dependsOn reference names a declared
// package.
func (m *Manifest) Graph() (*pkggraph.Graph, error) {
	g := pkggraph.NewGraph()

	names := make([]string, 0, len(m.Packages))
	for name := range m.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := m.Packages[name]
		dir, err := rpath.NewAnchoredSystemPath(def.Dir)
		if err != nil {
			return nil, fmt.Errorf("manifest: package %s: %w", name, err)
		}
		g.AddPackage(pkggraph.Package{Name: name, Dir: dir})
	}

	for _, name := range names {
		for _, dep := range m.Packages[name].DependsOn {
			if _, ok := m.Packages[dep]; !ok {
				return nil, fmt.Errorf("manifest: package %s depends on undeclared package %s", name, dep)
			}
			g.AddDependency(name, dep)
		}
	}

	return g, nil
}

// DeclaresTask reports whether pkgName opts into taskName: an empty
// Tasks list means every task applies.
func (m *Manifest) DeclaresTask(pkgName, taskName string) bool {
	def, ok := m.Packages[pkgName]
	if !ok {
		return false
	}
	if len(def.Tasks) == 0 {
		return true
	}
	for _, t := range def.Tasks {
		if t == taskName {
			return true
		}
	}
	return false
}
