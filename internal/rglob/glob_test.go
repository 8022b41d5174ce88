package rglob

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndIsMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"plain literal", "package.json", "package.json", true},
		{"literal miss", "package.json", "other.json", false},
		{"star within component", "packages/*/package.json", "packages/colors/package.json", true},
		{"star does not cross separator", "packages/*/package.json", "packages/a/b/package.json", false},
		{"tree matches zero components", "packages/**/package.json", "packages/package.json", true},
		{"tree matches many components", "packages/**/package.json", "packages/a/b/c/package.json", true},
		{"question mark", "a?c", "abc", true},
		{"question mark wrong length", "a?c", "abcd", false},
		{"char class range", "[a-c]og", "bog", true},
		{"char class negated", "[!a-c]og", "dog", true},
		{"char class negated miss", "[!a-c]og", "bog", false},
		{"alternation branch", "{foo,bar}.txt", "bar.txt", true},
		{"alternation no match", "{foo,bar}.txt", "baz.txt", false},
		{"repetition exact", "<ab:2>", "abab", true},
		{"repetition range", "<ab:1,3>", "ababab", true},
		{"repetition range too many", "<ab:1,2>", "ababab", false},
		{"escaped meta", `a\*b`, "a*b", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.IsMatch(tt.path))
		})
	}
}

// Literal path components without glob meta-characters round-trip
// through Compile/IsMatch.
func TestGlobRoundTrip(t *testing.T) {
	t.Parallel()

	paths := []string{"a/b/c", "packages/colors/index.js", "simple"}
	for _, p := range paths {
		g, err := Compile(p)
		require.NoError(t, err)
		assert.True(t, g.IsMatch(p))
	}
}

// An invariant glob matches its reported path and nothing else.
func TestInvarianceImpliesEquality(t *testing.T) {
	t.Parallel()

	g, err := Compile("packages/colors/package.json")
	require.NoError(t, err)

	v := g.Variance()
	require.True(t, v.IsInvariant())
	assert.Equal(t, "packages/colors/package.json", v.Path)

	others := []string{"packages/colors/package.json", "packages/colors/other.json", "packages/colors"}
	for _, o := range others {
		want := o == "packages/colors/package.json"
		assert.Equal(t, want, g.IsMatch(o), "path=%s", o)
	}
}

func TestVarianceVariantForWildcards(t *testing.T) {
	t.Parallel()

	g, err := Compile("packages/*/package.json")
	require.NoError(t, err)
	assert.False(t, g.Variance().IsInvariant())
}

func TestVarianceCaseInsensitiveLiteral(t *testing.T) {
	t.Parallel()
	SetCaseSensitive(true)
	defer SetCaseSensitive(true)

	g, err := Compile("(?i)README.md")
	require.NoError(t, err)
	assert.False(t, g.Variance().IsInvariant(), "case-insensitive literal with cased letters is variant on a case-sensitive filesystem")

	SetCaseSensitive(false)
	g2, err := Compile("(?i)README.md")
	require.NoError(t, err)
	assert.True(t, g2.Variance().IsInvariant(), "case-insensitive literal is invariant on a case-insensitive filesystem")
}

// PotentialMatch never reports NoMatch for a prefix of a matching path.
func TestPotentialMatchMonotone(t *testing.T) {
	t.Parallel()

	g, err := Compile("packages/*/package.json")
	require.NoError(t, err)

	assert.Equal(t, PotentialMatch, g.PotentialMatch(""))
	assert.Equal(t, PotentialMatch, g.PotentialMatch("packages"))
	assert.Equal(t, PotentialMatch, g.PotentialMatch("packages/colors"))
	assert.Equal(t, Match, g.PotentialMatch("packages/colors/package.json"))
	assert.Equal(t, NoMatch, g.PotentialMatch("apps"))
	assert.Equal(t, NoMatch, g.PotentialMatch("packages/colors/package.json/extra"))
}

func TestPartitionSplitsInvariantPrefix(t *testing.T) {
	t.Parallel()

	g, err := Compile("packages/colors/*.json")
	require.NoError(t, err)

	prefix, tail := g.Partition()
	assert.Equal(t, "packages/colors", prefix)
	assert.True(t, tail.IsMatch("index.json"))
	assert.False(t, tail.HasRoot())

	// Partition is idempotent.
	prefix2, tail2 := tail.Partition()
	assert.Equal(t, "", prefix2)
	assert.Equal(t, tail.IsMatch("index.json"), tail2.IsMatch("index.json"))
}

func TestRootedGlobMatchesAbsolutePaths(t *testing.T) {
	t.Parallel()

	g, err := Compile("/repo/src/**")
	require.NoError(t, err)
	assert.True(t, g.HasRoot())
	assert.True(t, g.IsMatch("/repo/src/main.go"))
	assert.True(t, g.IsMatch("/repo/src"))
	assert.False(t, g.IsMatch("/repo/other/main.go"))

	inv, err := Compile("/a/b")
	require.NoError(t, err)
	v := inv.Variance()
	require.True(t, v.IsInvariant())
	assert.Equal(t, "/a/b", filepath.ToSlash(v.Path))
}

func TestPartitionRootedGlob(t *testing.T) {
	t.Parallel()

	g, err := Compile("/a/b/*.txt")
	require.NoError(t, err)
	prefix, tail := g.Partition()
	assert.Equal(t, "/a/b", prefix)
	assert.False(t, tail.HasRoot())
}

func TestIsExhaustive(t *testing.T) {
	t.Parallel()

	g, err := Compile("services/**")
	require.NoError(t, err)
	assert.True(t, g.IsExhaustive())

	g2, err := Compile("services/*")
	require.NoError(t, err)
	assert.False(t, g2.IsExhaustive())
}

func TestHasSemanticLiterals(t *testing.T) {
	t.Parallel()

	g, err := Compile("a/../b")
	require.NoError(t, err)
	assert.True(t, g.HasSemanticLiterals())

	g2, err := Compile("a/b")
	require.NoError(t, err)
	assert.False(t, g2.HasSemanticLiterals())
}

func TestValidationRejectsAdjacentSeparators(t *testing.T) {
	t.Parallel()
	_, err := Compile("a//b")
	require.Error(t, err)
}

func TestValidationRejectsTreeNotWholeComponent(t *testing.T) {
	t.Parallel()
	_, err := Compile("a**b")
	require.Error(t, err)
}

func TestValidationRejectsSingularWildcardAlternationBranch(t *testing.T) {
	t.Parallel()
	_, err := Compile("{*,foo}")
	require.Error(t, err)
}

func TestValidationRejectsBadRepetitionBounds(t *testing.T) {
	t.Parallel()
	_, err := Compile("<a:3,1>")
	require.Error(t, err)

	_, err = Compile("<a:0,0>")
	require.Error(t, err)
}

func TestFixGlobPattern(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"**/**", "**"},
		{"**/**/**", "**"},
		{"**foo", "**/*foo"},
		{"foo**", "foo*/**"},
		{"a/b", "a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FixGlobPattern(tt.in), "in=%s", tt.in)
	}
}

func TestCollapse(t *testing.T) {
	t.Parallel()

	result, lowest := Collapse("e/../../../f")
	assert.Equal(t, "f", result)
	assert.Equal(t, -2, lowest)

	result2, lowest2 := Collapse("a/./b/../c")
	assert.Equal(t, "a/c", result2)
	assert.Equal(t, 0, lowest2)
}

func TestCompileAll(t *testing.T) {
	t.Parallel()

	globs, err := CompileAll([]string{"a", "b/*", "c/**"})
	require.NoError(t, err)
	require.Len(t, globs, 3)
	assert.True(t, globs[0].IsMatch("a"))
	assert.True(t, globs[1].IsMatch("b/x"))
	assert.True(t, globs[2].IsMatch("c/x/y"))

	_, err = CompileAll([]string{"a", "a**b"})
	require.Error(t, err)
}
