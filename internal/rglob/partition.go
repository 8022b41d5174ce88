package rglob

import (
	"path/filepath"
	"strings"
)

// Partition splits off the maximal invariant prefix shared by every
// variant of g, returning it as a host-separator path and a new Glob for
// the (non-rooted) remainder. Partition is idempotent: partitioning the
// returned tail again yields an empty prefix and an identical tail.
func (g *Glob) Partition() (string, *Glob) {
	if len(g.variants) == 0 {
		return "", g
	}

	minLen := len(g.variants[0])
	for _, v := range g.variants[1:] {
		if len(v) < minLen {
			minLen = len(v)
		}
	}

	k := 0
	var prefixParts []string
	for k < minLen {
		lit, ok := componentLiteral(g.variants[0][k])
		if !ok {
			break
		}
		same := true
		for _, v := range g.variants[1:] {
			other, ok := componentLiteral(v[k])
			if !ok || other != lit {
				same = false
				break
			}
		}
		if !same {
			break
		}
		prefixParts = append(prefixParts, lit)
		k++
	}

	prefix := strings.Join(prefixParts, "/")
	if g.rooted {
		prefix = "/" + prefix
	}

	if k == 0 {
		return filepath.FromSlash(prefix), g
	}

	newVariants := make([]variant, 0, len(g.variants))
	for _, v := range g.variants {
		newVariants = append(newVariants, v[k:])
	}
	tail := &Glob{raw: g.raw, variants: newVariants, rooted: false}
	tail.fast = buildFastMatcher(tail)
	return filepath.FromSlash(prefix), tail
}
