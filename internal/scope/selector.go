// Package scope implements the filter/scope resolver: selector parsing,
// directory-based package inference, dependency/dependent closure
// expansion, SCM-changed-set intersection, and exclude subtraction,
// yielding the final package set with an inclusion reason per package.
package scope

import (
	"path"
	"strings"

	"github.com/scopeforge/reposcope/internal/gitscm"
	"github.com/scopeforge/reposcope/internal/rerrors"
	"github.com/scopeforge/reposcope/internal/rglob"
)

// Selector is one parsed filter: a name pattern, an optional directory
// clause, an optional git range, and the closure/exclusion flags, with
// the raw text kept for diagnostics.
type Selector struct {
	Raw string

	Exclude     bool
	ParentDir   string // "" means no directory clause
	NamePattern string // "" means "no name restriction"

	IncludeDependencies bool
	IncludeDependents   bool
	ExcludeSelf         bool
	MatchDependencies   bool

	GitRange *gitscm.Range

	dirGlob  *rglob.Glob // precompiled lazily by compileDirGlob
	nameGlob *rglob.Glob // precompiled lazily by matchesName
}

// ParseSelector parses one filter string into a Selector.
//
// Surface grammar: `[!]["{"parentDir"}"]["..."]namePattern["..."]["^"]["["ref"]"]`
// — a leading `!` marks an exclude; a brace-wrapped prefix is the
// directory clause; a leading `...` requests dependents, a trailing `...`
// requests dependencies; a `^` immediately before or after the name
// requests self-exclusion; a trailing `[ref]` or `[from...to]` attaches a
// git range.
func ParseSelector(raw string) (*Selector, error) {
	s := &Selector{Raw: raw}
	rest := raw

	if strings.HasPrefix(rest, "!") {
		s.Exclude = true
		rest = rest[1:]
	}

	if strings.HasPrefix(rest, "{") {
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, &rerrors.InvalidSelector{Raw: raw}
		}
		s.ParentDir = rest[1:end]
		rest = rest[end+1:]
	}

	if idx := strings.IndexByte(rest, '['); idx >= 0 && strings.HasSuffix(rest, "]") {
		refClause := rest[idx+1 : len(rest)-1]
		rest = rest[:idx]
		s.GitRange = parseRefClause(refClause)
	}

	if strings.HasPrefix(rest, "...") {
		s.IncludeDependents = true
		rest = rest[3:]
	}
	if strings.HasSuffix(rest, "...") {
		s.IncludeDependencies = true
		rest = rest[:len(rest)-3]
	}

	if strings.HasPrefix(rest, "^") {
		s.ExcludeSelf = true
		rest = rest[1:]
	}
	if strings.HasSuffix(rest, "^") {
		s.ExcludeSelf = true
		rest = rest[:len(rest)-1]
	}

	s.NamePattern = rest

	// "foo...[ref]" asks whether foo's dependency set intersects the
	// range's changed set, rather than including foo's dependencies.
	if s.GitRange != nil && s.IncludeDependencies && s.NamePattern != "" {
		s.MatchDependencies = true
		s.IncludeDependencies = false
	}

	if s.NamePattern == "" && s.ParentDir == "" && s.GitRange == nil {
		return nil, &rerrors.InvalidSelector{Raw: raw}
	}
	return s, nil
}

// parseRefClause parses "<ref>" or "<from>...<to>" into a GitRange. A
// bare <ref> becomes From, compared against HEAD plus uncommitted
// changes (the reading --affected gives a bare ref). Refs are not checked
// here; the git layer itself reports unknown refs.
func parseRefClause(clause string) *gitscm.Range {
	if idx := strings.Index(clause, "..."); idx >= 0 {
		return &gitscm.Range{From: clause[:idx], To: clause[idx+3:]}
	}
	return &gitscm.Range{From: clause, IncludeUncommitted: true}
}

// IsExactName reports whether NamePattern contains no glob
// metacharacters. An exact name that matches nothing is an error;
// a wildcard that matches nothing is just empty.
func (s *Selector) IsExactName() bool {
	return s.NamePattern != "" && !strings.ContainsAny(s.NamePattern, "*?[{")
}

// nameSep stands in for "/" while a name pattern is matched, so a
// package name is one logical token to the glob engine: "*" then spans
// the whole of "@scope/name" instead of stopping at the slash the way a
// path component would.
const nameSep = "\x1f"

// matchesName reports whether pkgName satisfies NamePattern. An empty
// pattern matches everything; "*" matches any character run.
func (s *Selector) matchesName(pkgName string) bool {
	if s.NamePattern == "" {
		return true
	}
	if s.NamePattern == pkgName {
		return true
	}
	if s.nameGlob == nil {
		g, err := rglob.Compile(strings.ReplaceAll(s.NamePattern, "/", nameSep))
		if err != nil {
			return false
		}
		s.nameGlob = g
	}
	return s.nameGlob.IsMatch(strings.ReplaceAll(pkgName, "/", nameSep))
}

// compileDirGlob precompiles ParentDir once per Selector and reuses it
// across every package-path probe; compiling per probe would be
// quadratic on large graphs. ParentDir has already been joined to the
// inference root by injectInference, so it is compiled as-is.
func (s *Selector) compileDirGlob() (*rglob.Glob, error) {
	if s.dirGlob != nil {
		return s.dirGlob, nil
	}
	if s.ParentDir == "" {
		return nil, nil
	}
	pat := strings.TrimPrefix(path.Clean(s.ParentDir), "/")
	g, err := rglob.Compile(pat)
	if err != nil {
		return nil, err
	}
	s.dirGlob = g
	return g, nil
}

// navigatesUpward reports whether ParentDir climbs above the inference
// directory.
func (s *Selector) navigatesUpward() bool {
	return strings.HasPrefix(s.ParentDir, "..")
}
