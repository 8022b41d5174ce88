package rwalk

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/scopeforge/reposcope/internal/rerrors"
	"github.com/scopeforge/reposcope/internal/rglob"
	"github.com/scopeforge/reposcope/internal/rpath"
)

// WalkType selects which entry kinds GlobWalk emits.
type WalkType int

const (
	Files WalkType = iota
	Folders
	All
)

// GlobWalk combines the hierarchical walker with the glob engine to
// enumerate the entries under base that satisfy include but not
// exclude, pruning excluded and non-matching subtrees outright rather
// than walking and then filtering. The returned map is keyed by each
// match's walk-root-relative (the base, unless an include pattern
// traverses upward), "/"-separated path, so callers get a stable,
// relocatable identity for each match alongside its absolute
// location.
//
// Compile errors in any pattern are reported as a single wrapped
// rerrors.BadPattern. Not-found and permission-denied entries are
// skipped silently by the walker. Other per-entry I/O errors are
// non-fatal: each becomes an rerrors.WalkErr, and they are returned
// together as one aggregated error alongside the results. Symlinks are
// never followed, so no link-cycle error arises. A fatal failure to
// stat the effective root is returned directly.
func GlobWalk(base rpath.AbsoluteSystemPath, include, exclude []string, walkType WalkType) (map[string]rpath.AbsoluteSystemPath, error) {
	includePatterns, lowestDepth := prepareIncludes(base, include)
	excludePatterns := prepareExcludes(base, exclude)

	includeGlobs, err := rglob.CompileAll(includePatterns)
	if err != nil {
		return nil, rerrors.Wrap(err)
	}
	excludeGlobs, err := rglob.CompileAll(excludePatterns)
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	root := narrowRoot(base, lowestDepth)

	walker := NewWalker(root, Behavior{MaxDepth: NoDepthLimit, Link: ReadFile})
	results := map[string]rpath.AbsoluteSystemPath{}
	agg := rerrors.NewAggregate()

	for {
		entry, ok, err := walker.Next()
		if !ok {
			break
		}
		if err != nil {
			if entry.Path.IsEmpty() && len(results) == 0 && agg.Len() == 0 {
				// The very first Next() call failed: a root stat
				// failure is fatal.
				return nil, err
			}
			agg.Append(boundaryWalkErr(err))
			continue
		}

		// Patterns carry the (escaped) base as a literal prefix, so
		// matching happens in absolute unix-path space; the base-relative
		// form is only the result key.
		fullUnix := entry.Path.ToUnix()
		rel, relErr := root.StripPrefix(entry.Path)
		var relUnix string
		if relErr == nil {
			u, err := rel.ToUnix()
			if err == nil {
				relUnix = u.String()
			}
		}

		excluded := matchesAny(excludeGlobs, fullUnix)
		if excluded {
			if entry.Type == Directory {
				walker.CancelSubtree()
			}
			continue
		}

		state := includeState(includeGlobs, fullUnix, entry.Type == Directory)
		switch state {
		case rglob.NoMatch:
			if entry.Type == Directory {
				walker.CancelSubtree()
			}
		case rglob.PotentialMatch:
			// Descend, but this entry itself is not emitted.
		case rglob.Match:
			if walkTypeAllows(walkType, entry.Type) {
				results[relUnix] = entry.Path
			}
		}
	}

	return results, agg.ErrorOrNil()
}

// boundaryWalkErr converts this package's WalkError into the boundary
// taxonomy's rerrors.WalkErr before it is aggregated.
func boundaryWalkErr(err error) error {
	we, ok := err.(*WalkError)
	if !ok {
		return err
	}
	return &rerrors.WalkErr{Kind: rerrors.WalkErrKind(we.Kind), Path: we.Path.String(), Depth: we.Depth, Err: we.Err}
}

func walkTypeAllows(wt WalkType, ft FileType) bool {
	isDir := ft == Directory
	switch wt {
	case Files:
		return !isDir
	case Folders:
		return isDir
	default:
		return true
	}
}

func matchesAny(globs []*rglob.Glob, relUnix string) bool {
	for _, g := range globs {
		if g.IsMatch(relUnix) {
			return true
		}
	}
	return false
}

// includeState combines potential-match (directories) and full match
// (files) across every include glob, empty includes meaning everything
// matches.
func includeState(globs []*rglob.Glob, relUnix string, isDir bool) rglob.MatchState {
	if len(globs) == 0 {
		return rglob.Match
	}
	best := rglob.NoMatch
	for _, g := range globs {
		var s rglob.MatchState
		if isDir {
			s = g.PotentialMatch(relUnix)
		} else if g.IsMatch(relUnix) {
			s = rglob.Match
		} else {
			s = rglob.NoMatch
		}
		if matchPriority(s) > matchPriority(best) {
			best = s
		}
	}
	return best
}

// matchPriority orders states Match > PotentialMatch > NoMatch, which is
// not rglob.MatchState's own numeric ordering (PotentialMatch is a
// weaker signal than Match, not a stronger one).
func matchPriority(s rglob.MatchState) int {
	switch s {
	case rglob.Match:
		return 2
	case rglob.PotentialMatch:
		return 1
	default:
		return 0
	}
}

// prepareIncludes normalizes and collapses each include pattern,
// expands patterns naming an existing directory to cover its whole
// subtree, and prefixes the escaped base; it returns the lowest (most
// negative) collapse depth seen, used to widen the effective walk
// root. Each pattern is anchored at
// base moved up by its own collapse depth, so "e/../../../f" under
// /a/b/c/d becomes the absolute pattern /a/b/f.
func prepareIncludes(base rpath.AbsoluteSystemPath, include []string) ([]string, int) {
	lowest := 0
	out := make([]string, 0, len(include))
	for _, raw := range include {
		fixed := rglob.FixGlobPattern(raw)
		collapsed, depth := rglob.Collapse(fixed)
		if depth < lowest {
			lowest = depth
		}
		anchor := narrowRoot(base, depth)
		rel := strings.TrimPrefix(collapsed, "/")
		if isExistingDir(anchor.Join(filepathFromSlash(rel))) {
			if rel == "" {
				rel = "**"
			} else {
				rel += "/**"
			}
		}
		out = append(out, anchorPattern(anchor, rel))
	}
	return out, lowest
}

// prepareExcludes normalizes each exclude pattern and prefixes the
// escaped base; a pattern without a trailing slash gets a sibling
// "/**" form, so excluding X drops both X and everything under it.
func prepareExcludes(base rpath.AbsoluteSystemPath, exclude []string) []string {
	out := make([]string, 0, len(exclude)*2)
	for _, raw := range exclude {
		fixed := rglob.FixGlobPattern(raw)
		hadTrailingSlash := strings.HasSuffix(fixed, "/")
		collapsed, depth := rglob.Collapse(fixed)
		anchor := narrowRoot(base, depth)
		trimmed := strings.TrimPrefix(collapsed, "/")
		if trimmed == "" {
			// The whole anchor directory is excluded.
			out = append(out, anchorPattern(anchor, "**"))
			continue
		}
		if hadTrailingSlash {
			out = append(out, anchorPattern(anchor, trimmed+"/**"))
			continue
		}
		out = append(out, anchorPattern(anchor, trimmed))
		out = append(out, anchorPattern(anchor, trimmed+"/**"))
	}
	return out
}

// anchorPattern prefixes rel (a "/"-separated glob fragment) with
// anchor's escaped absolute path.
func anchorPattern(anchor rpath.AbsoluteSystemPath, rel string) string {
	escaped := rglob.EscapeMeta(anchor.ToUnix())
	if rel == "" {
		return escaped
	}
	return escaped + "/" + rel
}

// narrowRoot moves base upward by abs(lowestDepth) path components: a
// leading "../" prefix on an include pattern widens the effective walk
// root above base.
func narrowRoot(base rpath.AbsoluteSystemPath, lowestDepth int) rpath.AbsoluteSystemPath {
	root := base
	for i := 0; i < -lowestDepth; i++ {
		parent, ok := root.Parent()
		if !ok {
			break
		}
		root = parent
	}
	return root
}

func isExistingDir(p rpath.AbsoluteSystemPath) bool {
	info, err := os.Stat(p.String())
	return err == nil && info.IsDir()
}

func filepathFromSlash(p string) string {
	return filepath.FromSlash(strings.TrimPrefix(p, "/"))
}
