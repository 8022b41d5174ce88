package rglob

import (
	"strings"
	"sync/atomic"

	"github.com/scopeforge/reposcope/internal/rerrors"
)

// caseSensitive holds the host filesystem's case-sensitivity rule, the
// single runtime flag variance detection consults. Case sensitivity is a
// property of the target filesystem, not of the platform the binary was
// built for. Default true, matching a typical Linux build host.
var caseSensitive atomic.Bool

func init() {
	caseSensitive.Store(true)
}

// SetCaseSensitive overrides the host case-sensitivity rule glob variance
// detection consults. Tests pin it explicitly rather than relying on
// runtime.GOOS.
func SetCaseSensitive(v bool) { caseSensitive.Store(v) }

// CaseSensitive reports the currently configured rule.
func CaseSensitive() bool { return caseSensitive.Load() }

// Glob is a compiled, immutable glob expression.
type Glob struct {
	raw      string
	variants []variant
	rooted   bool
	fast     fastMatcher // non-nil when the whole pattern is expressible via gobwas/glob
}

// Compile parses, validates, and compiles expr into a Glob.
func Compile(expr string) (*Glob, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, toBadPattern(expr, err)
	}
	if err := validate(root); err != nil {
		return nil, toBadPattern(expr, err)
	}
	flatVariants := expand(root)
	variants := make([]variant, 0, len(flatVariants))
	rooted := false
	for _, flat := range flatVariants {
		v := splitComponents(flat)
		if len(v) > 1 && len(v[0]) == 0 {
			rooted = true
			v = v[1:]
		}
		variants = append(variants, v)
	}
	g := &Glob{raw: expr, variants: variants, rooted: rooted}
	g.fast = buildFastMatcher(g)
	return g, nil
}

func toBadPattern(expr string, err error) error {
	pe, ok := err.(*parseError)
	if !ok {
		return rerrors.Wrap(&rerrors.BadPattern{Pattern: expr, Detail: err.Error()})
	}
	return rerrors.Wrap(&rerrors.BadPattern{Pattern: expr, Detail: pe.msg, Span: [2]int{pe.sp.start, pe.sp.end}})
}

// String returns the original expression the Glob was compiled from.
func (g *Glob) String() string { return g.raw }

// HasRoot reports whether the expression is anchored at the filesystem (or
// walk) root, i.e. began with "/".
func (g *Glob) HasRoot() bool { return g.rooted }

// HasSemanticLiterals reports whether any literal token is exactly "." or
// "..", which callers may need to treat specially (they are ordinary glob
// literals, not path-collapse operators, inside a compiled Glob).
func (g *Glob) HasSemanticLiterals() bool {
	for _, v := range g.variants {
		for _, c := range v {
			for _, t := range c {
				if t.kind == tokLiteral && (t.lit == "." || t.lit == "..") {
					return true
				}
			}
		}
	}
	return false
}

// IsExhaustive reports whether every variant's trailing component is "**",
// meaning the glob matches any descendant of whatever it matches up to
// that point.
func (g *Glob) IsExhaustive() bool {
	if len(g.variants) == 0 {
		return false
	}
	for _, v := range g.variants {
		if len(v) == 0 || !v[len(v)-1].isTree() {
			return false
		}
	}
	return true
}

// IsMatch reports whether relPath (forward-slash separated, relative)
// fully matches g.
func (g *Glob) IsMatch(relPath string) bool {
	if g.fast != nil {
		return g.fast.Match(strings.Trim(relPath, "/"))
	}
	comps := pathComponents(relPath)
	for _, v := range g.variants {
		if matchVariant(v, comps) {
			return true
		}
	}
	return false
}

func pathComponents(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
