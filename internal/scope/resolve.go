package scope

import (
	"path"
	"strings"

	"github.com/scopeforge/reposcope/internal/gitscm"
	"github.com/scopeforge/reposcope/internal/pkggraph"
	"github.com/scopeforge/reposcope/internal/rerrors"
)

// ChangedSetFunc resolves a git range to a set of repo-root-relative
// changed file paths; internal/gitscm.Repo.ChangedPaths satisfies this
// shape.
type ChangedSetFunc func(gitscm.Range) (map[string]bool, error)

// Result is the resolved scope: one Reason per included package name.
type Result map[string]Reason

// Resolve turns raw filter selectors into the final package set: parse
// selectors, inject package inference, partition into includes/excludes,
// expand each include's seed set into its requested closure, union the
// includes, and subtract the excludes.
func Resolve(graph *pkggraph.Graph, inference Inference, changed ChangedSetFunc, rawSelectors []string, affected *gitscm.Range) (Result, error) {
	selectors := make([]*Selector, 0, len(rawSelectors))
	for _, raw := range rawSelectors {
		sel, err := ParseSelector(raw)
		if err != nil {
			return nil, rerrors.Wrap(err)
		}
		selectors = append(selectors, sel)
	}

	if affected != nil {
		selectors = append(selectors, &Selector{
			Raw:               "--affected",
			GitRange:          affected,
			IncludeDependents: true,
		})
	}

	var includes, excludes []*Selector
	for _, sel := range selectors {
		if sel.Exclude {
			excludes = append(excludes, sel)
		} else {
			includes = append(includes, sel)
		}
	}
	if len(includes) == 0 && inference.Name != "" {
		includes = append(includes, &Selector{Raw: ""})
	}

	for _, sel := range includes {
		injectInference(sel, inference)
	}
	for _, sel := range excludes {
		injectInference(sel, inference)
	}

	includeUnion := Result{}
	for _, sel := range includes {
		res, err := resolveOne(graph, changed, sel)
		if err != nil {
			return nil, err
		}
		for name, reason := range res {
			if _, already := includeUnion[name]; !already {
				includeUnion[name] = reason
			}
		}
	}

	excludeSet := map[string]bool{}
	for _, sel := range excludes {
		res, err := resolveOne(graph, changed, sel)
		if err != nil {
			return nil, err
		}
		for name := range res {
			excludeSet[name] = true
		}
	}

	final := Result{}
	for name, reason := range includeUnion {
		if excludeSet[name] {
			continue
		}
		final[name] = reason
	}
	return final, nil
}

// injectInference rewrites sel in place against the CWD-derived
// inference: an empty name pattern picks up the inferred package name
// unless the selector's directory clause stays at or below the current
// directory (then the user is explicitly selecting children), and a
// directory clause is re-anchored at the inference root.
func injectInference(sel *Selector, inference Inference) {
	if sel.NamePattern == "" {
		if sel.ParentDir == "" && inference.Name != "" {
			sel.NamePattern = inference.Name
		} else if sel.navigatesUpward() && inference.Name != "" {
			sel.NamePattern = inference.Name
		}
	}
	if sel.ParentDir != "" {
		sel.ParentDir = path.Clean(path.Join(inference.Root, sel.ParentDir))
	}
}

func resolveOne(graph *pkggraph.Graph, changed ChangedSetFunc, sel *Selector) (Result, error) {
	if sel.GitRange != nil {
		return resolveGitRange(graph, changed, sel)
	}
	return resolvePlain(graph, sel)
}

func resolvePlain(graph *pkggraph.Graph, sel *Selector) (Result, error) {
	dirGlob, err := sel.compileDirGlob()
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	seeds := Result{}
	dirHit := false
	for _, pkg := range graph.All() {
		if dirGlob != nil {
			if !dirGlob.IsMatch(strings.Trim(pkg.Dir.String(), "/")) {
				continue
			}
			dirHit = true
		}
		if !sel.matchesName(pkg.Name) {
			continue
		}
		reason := Reason{Kind: IncludedByFilter, Filters: []string{sel.Raw}}
		if sel.NamePattern == "" && sel.ParentDir != "" {
			reason = Reason{Kind: InFilteredDirectory, Dir: sel.ParentDir}
		}
		seeds[pkg.Name] = reason
	}

	if dirGlob != nil && !dirHit && isLiteralDir(sel.ParentDir) && !dirKnownToGraph(graph, sel.ParentDir) {
		return nil, rerrors.Wrap(&rerrors.DirectoryDoesNotExist{Path: sel.ParentDir})
	}

	if sel.IsExactName() && len(seeds) == 0 {
		return nil, rerrors.Wrap(&rerrors.NoPackagesMatchedWithName{Name: sel.NamePattern})
	}

	return expandClosure(graph, sel, seeds), nil
}

func isLiteralDir(dir string) bool {
	return dir != "" && !strings.ContainsAny(dir, "*?[{<")
}

// dirKnownToGraph reports whether dir is a directory the package graph
// can vouch for: equal to, an ancestor of, or inside some package's
// directory. A literal selector directory that fails this test does not
// exist anywhere in the workspace the graph describes.
func dirKnownToGraph(graph *pkggraph.Graph, dir string) bool {
	dir = strings.Trim(path.Clean(dir), "/")
	if dir == "" || dir == "." {
		return true
	}
	for _, pkg := range graph.All() {
		pkgDir := strings.Trim(pkg.Dir.String(), "/")
		if pkgDir == dir ||
			strings.HasPrefix(pkgDir, dir+"/") ||
			strings.HasPrefix(dir, pkgDir+"/") {
			return true
		}
	}
	return false
}

func resolveGitRange(graph *pkggraph.Graph, changed ChangedSetFunc, sel *Selector) (Result, error) {
	changedPaths, err := changed(*sel.GitRange)
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	dirGlob, err := sel.compileDirGlob()
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	changedPkgs := map[string]bool{}
	for _, pkg := range graph.All() {
		dir := strings.Trim(pkg.Dir.String(), "/")
		if pkgDirChanged(dir, changedPaths) {
			changedPkgs[pkg.Name] = true
		}
	}

	seeds := Result{}
	if sel.MatchDependencies {
		for _, pkg := range graph.All() {
			if dirGlob != nil && !dirGlob.IsMatch(strings.Trim(pkg.Dir.String(), "/")) {
				continue
			}
			if !sel.matchesName(pkg.Name) {
				continue
			}
			for _, dep := range graph.Dependencies(pkg.Name) {
				if changedPkgs[dep] {
					seeds[pkg.Name] = Reason{Kind: DependencyChanged, Dep: dep}
					break
				}
			}
		}
	} else {
		for name := range changedPkgs {
			pkg, _ := graph.ByName(name)
			dir := strings.Trim(pkg.Dir.String(), "/")
			if dirGlob != nil && !dirGlob.IsMatch(dir) {
				continue
			}
			if !sel.matchesName(name) {
				continue
			}
			seeds[name] = Reason{Kind: ChangedByCommit, Commit: sel.GitRange.From + "..." + sel.GitRange.To}
		}
	}

	return expandClosure(graph, sel, seeds), nil
}

// pkgDirChanged reports whether any changed path falls within dir
// (repo-root-relative, no leading/trailing slash; "" means the repo
// root, which every path falls within).
func pkgDirChanged(dir string, changedPaths map[string]bool) bool {
	if dir == "" {
		return len(changedPaths) > 0
	}
	prefix := dir + "/"
	for p := range changedPaths {
		if p == dir || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// expandClosure grows seeds into the selector's requested closure,
// attributing DependencyChanged/DependentChanged to packages pulled in
// only by the expansion (never overwriting a seed's own reason).
func expandClosure(graph *pkggraph.Graph, sel *Selector, seeds Result) Result {
	out := Result{}
	for name, reason := range seeds {
		out[name] = reason
	}

	if sel.IncludeDependencies {
		for seedName := range seeds {
			for _, dep := range graph.Dependencies(seedName) {
				if _, ok := out[dep]; !ok {
					out[dep] = Reason{Kind: DependencyChanged, Dep: seedName}
				}
			}
		}
	}
	if sel.IncludeDependents {
		for seedName := range seeds {
			for _, dependent := range graph.Dependents(seedName) {
				if _, ok := out[dependent]; !ok {
					out[dependent] = Reason{Kind: DependentChanged, Dep: seedName}
				}
			}
		}
		if sel.IncludeDependencies {
			// Both flags set: the dependents' own dependencies ride along.
			for seedName := range seeds {
				for _, dependent := range graph.Dependents(seedName) {
					for _, dep := range graph.Dependencies(dependent) {
						if _, ok := out[dep]; !ok {
							out[dep] = Reason{Kind: DependencyChanged, Dep: dependent}
						}
					}
				}
			}
		}
	}

	if sel.ExcludeSelf && (sel.IncludeDependencies || sel.IncludeDependents) {
		for seedName := range seeds {
			delete(out, seedName)
		}
	}

	return out
}
