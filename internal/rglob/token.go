// Package rglob implements the glob expression language used to declare
// task input/output sets and enumerate workspace files: a
// recursive-descent parser over literal runs, `?`, `*`/`$`, `**`,
// character classes, alternation, bounded repetition, and `(?i)` flag
// scopes, compiled into a matcher that additionally answers variance,
// exhaustiveness, rootedness, and partition queries.
//
// The final literal-path match test, for the common case of a pattern
// containing only literals/`?`/`*`, is delegated to
// github.com/gobwas/glob (see fastpath.go); tokenizing, validation,
// variance, and partition are this package's own.
package rglob

// tokenKind enumerates the expression language's token classes.
type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokAny               // ?
	tokStar              // * or $ (lazy)
	tokTree              // **
	tokClass
	tokSep // component separator "/"
)

// token is a single element of a flattened (post-alternation,
// post-repetition-expansion) glob variant. Flag scopes ((?i)/(?-i)) are
// resolved at parse time into the ci field of each literal token, so no
// separate flag token survives into a flat variant. Class tokens carry no
// case flag and always match case-sensitively.
type token struct {
	kind tokenKind

	// tokLiteral
	lit string
	ci  bool // case-insensitive literal

	// tokStar
	lazy bool

	// tokTree
	hasRoot bool

	// tokClass
	class *charClass
}

// charClass is a compiled `[...]` character class.
type charClass struct {
	negated bool
	// singles holds individual allowed (or, if negated, disallowed) runes.
	singles []rune
	// ranges holds inclusive [lo, hi] rune ranges.
	ranges [][2]rune
}

func (c *charClass) matches(r rune) bool {
	found := false
	for _, s := range c.singles {
		if s == r {
			found = true
			break
		}
	}
	if !found {
		for _, rg := range c.ranges {
			if r >= rg[0] && r <= rg[1] {
				found = true
				break
			}
		}
	}
	if c.negated {
		return !found
	}
	return found
}

// isSingleRune reports whether the class matches exactly one rune, and
// that rune, used by variance detection (a non-negated class with exactly
// one single and no ranges is invariant).
func (c *charClass) isSingleRune() (rune, bool) {
	if c.negated || len(c.ranges) != 0 || len(c.singles) != 1 {
		return 0, false
	}
	return c.singles[0], true
}

// component is one "/"-delimited segment of a flat variant: a run of
// tokens with no embedded tokSep, or a single tokTree token standing alone
// (rule 3: "**" may appear only as a whole component).
type component []token

func (c component) isTree() bool {
	return len(c) == 1 && c[0].kind == tokTree
}

// variant is one fully-expanded (alternation- and repetition-free)
// candidate token stream, split into path components.
type variant []component
