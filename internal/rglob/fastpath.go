package rglob

import (
	"strings"

	"github.com/gobwas/glob"
)

// fastMatcher is satisfied by the gobwas/glob adapter used for the common
// case: a single-variant pattern built only from literals, "?", and "*"
// (an alternation or repetition that expands to one variant qualifies).
// Patterns with several variants, character classes, case-insensitive
// literals, and tree wildcards fall back to the hand-written backtracking
// matcher in match.go; gobwas/glob's "**" requires at least the trailing
// separator ("x/**" does not match "x" there, while a tree component here
// matches zero components).
type fastMatcher interface {
	Match(relPath string) bool
}

type gobwasMatcher struct {
	g glob.Glob
}

func (m *gobwasMatcher) Match(relPath string) bool {
	return m.g.Match(relPath)
}

// buildFastMatcher returns a gobwas/glob-backed matcher when g's single
// variant is expressible in gobwas/glob's dialect, or nil to fall back to
// the general matcher.
func buildFastMatcher(g *Glob) fastMatcher {
	if len(g.variants) != 1 {
		return nil
	}
	pattern, ok := toGobwasPattern(g.variants[0])
	if !ok {
		return nil
	}
	compiled, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil
	}
	return &gobwasMatcher{g: compiled}
}

const gobwasMeta = `\*?[]{},`

func toGobwasPattern(v variant) (string, bool) {
	parts := make([]string, 0, len(v))
	for _, c := range v {
		if c.isTree() {
			return "", false
		}
		var b strings.Builder
		for _, t := range c {
			switch t.kind {
			case tokLiteral:
				if t.ci {
					return "", false
				}
				for _, r := range t.lit {
					if strings.ContainsRune(gobwasMeta, r) {
						b.WriteByte('\\')
					}
					b.WriteRune(r)
				}
			case tokAny:
				b.WriteByte('?')
			case tokStar:
				b.WriteByte('*')
			default:
				return "", false
			}
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "/"), true
}
