package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeforge/reposcope/internal/gitscm"
	"github.com/scopeforge/reposcope/internal/pkggraph"
	"github.com/scopeforge/reposcope/internal/rpath"
)

func mustDir(t *testing.T, p string) rpath.AnchoredSystemPath {
	t.Helper()
	d, err := rpath.NewAnchoredSystemPath(p)
	require.NoError(t, err)
	return d
}

func buildOnpremGraph(t *testing.T) *pkggraph.Graph {
	g := pkggraph.NewGraph()
	g.AddPackage(pkggraph.Package{Name: "backend", Dir: mustDir(t, "apps/onprem/backend")})
	g.AddPackage(pkggraph.Package{Name: "web", Dir: mustDir(t, "apps/onprem/web")})
	g.AddPackage(pkggraph.Package{Name: "app-a-client", Dir: mustDir(t, "apps/onprem/backend/app-a-client")})
	g.AddPackage(pkggraph.Package{Name: "other", Dir: mustDir(t, "apps/other")})
	return g
}

func noChanges(gitscm.Range) (map[string]bool, error) {
	return map[string]bool{}, nil
}

// A directory filter rooted at a directory that itself contains
// packages (apps/onprem) must resolve to its immediate package children
// only, never the containing directory's own (nonexistent) package, and
// never a package nested two levels down.
func TestDirectoryFilterFromPackagesContainingDirectory(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)
	inference := Inference{Name: "", Root: "apps/onprem"}

	res, err := Resolve(g, inference, noChanges, []string{"{./*}"}, nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for name := range res {
		names[name] = true
	}
	assert.Equal(t, map[string]bool{"backend": true, "web": true}, names)
}

func TestParseSelectorGrammar(t *testing.T) {
	t.Parallel()

	sel, err := ParseSelector("...foo...")
	require.NoError(t, err)
	assert.True(t, sel.IncludeDependents)
	assert.True(t, sel.IncludeDependencies)
	assert.Equal(t, "foo", sel.NamePattern)

	sel, err = ParseSelector("!foo")
	require.NoError(t, err)
	assert.True(t, sel.Exclude)
	assert.Equal(t, "foo", sel.NamePattern)

	sel, err = ParseSelector("foo^")
	require.NoError(t, err)
	assert.True(t, sel.ExcludeSelf)
	assert.Equal(t, "foo", sel.NamePattern)

	sel, err = ParseSelector("foo[abc...def]")
	require.NoError(t, err)
	require.NotNil(t, sel.GitRange)
	assert.Equal(t, "abc", sel.GitRange.From)
	assert.Equal(t, "def", sel.GitRange.To)

	_, err = ParseSelector("")
	assert.Error(t, err)

	_, err = ParseSelector("{unterminated")
	assert.Error(t, err)
}

func TestResolveExactNameMissErrors(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)
	_, err := Resolve(g, Inference{}, noChanges, []string{"nonexistent"}, nil)
	assert.Error(t, err)
}

func TestResolveWildcardMissIsNotError(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)
	res, err := Resolve(g, Inference{}, noChanges, []string{"nonexistent*"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestResolveIncludeDependenciesClosure(t *testing.T) {
	t.Parallel()
	g := pkggraph.NewGraph()
	g.AddPackage(pkggraph.Package{Name: "a", Dir: mustDir(t, "a")})
	g.AddPackage(pkggraph.Package{Name: "b", Dir: mustDir(t, "b")})
	g.AddDependency("a", "b")

	res, err := Resolve(g, Inference{}, noChanges, []string{"a..."}, nil)
	require.NoError(t, err)
	require.Contains(t, res, "b")
	assert.Equal(t, DependencyChanged, res["b"].Kind)
	assert.Equal(t, "a", res["b"].Dep)
}

func TestResolveExcludeSubtractsFromInclude(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)
	res, err := Resolve(g, Inference{}, noChanges, []string{"{apps/onprem/*}", "!backend"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, res, "backend")
	assert.Contains(t, res, "web")
}

func TestResolveGitRangeSeedsAndDependents(t *testing.T) {
	t.Parallel()
	g := pkggraph.NewGraph()
	g.AddPackage(pkggraph.Package{Name: "core", Dir: mustDir(t, "core")})
	g.AddPackage(pkggraph.Package{Name: "app", Dir: mustDir(t, "app")})
	g.AddDependency("app", "core")

	changed := func(gitscm.Range) (map[string]bool, error) {
		return map[string]bool{"core/file.go": true}, nil
	}

	res, err := Resolve(g, Inference{}, changed, nil, &gitscm.Range{From: "a", To: "b"})
	require.NoError(t, err)
	require.Contains(t, res, "core")
	assert.Equal(t, ChangedByCommit, res["core"].Kind)
	require.Contains(t, res, "app")
	assert.Equal(t, DependentChanged, res["app"].Kind)
}

func TestLiteralDirectorySelectorMustExist(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)

	_, err := Resolve(g, Inference{}, noChanges, []string{"{no/such/dir}"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	// A known directory that simply holds no package directly is not an
	// error, just empty.
	res, err := Resolve(g, Inference{}, noChanges, []string{"{apps/onprem}"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestWildcardSpansScopedPackageNames(t *testing.T) {
	t.Parallel()
	g := pkggraph.NewGraph()
	g.AddPackage(pkggraph.Package{Name: "@acme/ui", Dir: mustDir(t, "packages/ui")})
	g.AddPackage(pkggraph.Package{Name: "@acme/core", Dir: mustDir(t, "packages/core")})
	g.AddPackage(pkggraph.Package{Name: "tools", Dir: mustDir(t, "tools")})

	res, err := Resolve(g, Inference{}, noChanges, []string{"*"}, nil)
	require.NoError(t, err)
	assert.Len(t, res, 3, "a bare * must match scoped names, not stop at the slash")

	res, err = Resolve(g, Inference{}, noChanges, []string{"@acme/*"}, nil)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.Contains(t, res, "@acme/ui")
	assert.Contains(t, res, "@acme/core")
}

// "app...[from...to]" asks whether app's dependency set intersects the
// range's changed set, rather than expanding app's dependencies.
func TestMatchDependenciesSelector(t *testing.T) {
	t.Parallel()
	g := pkggraph.NewGraph()
	g.AddPackage(pkggraph.Package{Name: "core", Dir: mustDir(t, "core")})
	g.AddPackage(pkggraph.Package{Name: "app", Dir: mustDir(t, "app")})
	g.AddPackage(pkggraph.Package{Name: "standalone", Dir: mustDir(t, "standalone")})
	g.AddDependency("app", "core")

	sel, err := ParseSelector("app...[a...b]")
	require.NoError(t, err)
	assert.True(t, sel.MatchDependencies)
	assert.False(t, sel.IncludeDependencies)

	changed := func(gitscm.Range) (map[string]bool, error) {
		return map[string]bool{"core/file.go": true}, nil
	}

	res, err := Resolve(g, Inference{}, changed, []string{"app...[a...b]"}, nil)
	require.NoError(t, err)
	require.Contains(t, res, "app")
	assert.Equal(t, DependencyChanged, res["app"].Kind)
	assert.Equal(t, "core", res["app"].Dep)
	assert.NotContains(t, res, "standalone")
	assert.NotContains(t, res, "core")
}

func TestInferCwdInsidePackageIsDeepestMatch(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)
	inf := Infer(g, "apps/onprem/backend/src")
	assert.Equal(t, "backend", inf.Name)
	assert.Equal(t, "apps/onprem/backend", inf.Root)
}

func TestInferCwdOutsideAnyPackage(t *testing.T) {
	t.Parallel()
	g := buildOnpremGraph(t)
	inf := Infer(g, "tools")
	assert.Equal(t, "", inf.Name)
	assert.Equal(t, "tools", inf.Root)
}
