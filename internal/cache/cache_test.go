package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeforge/reposcope/internal/rpath"
)

func absPath(t *testing.T, p string) rpath.AbsoluteSystemPath {
	t.Helper()
	ap, err := rpath.NewAbsoluteSystemPath(p)
	require.NoError(t, err)
	return ap
}

func TestHashInputsStableUnderMapOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0o644))

	inputs := map[string]rpath.AbsoluteSystemPath{
		"a.go": absPath(t, filepath.Join(dir, "a.go")),
		"b.go": absPath(t, filepath.Join(dir, "b.go")),
	}

	h1, err := HashInputs("build", inputs)
	require.NoError(t, err)
	h2, err := HashInputs("build", inputs)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashInputsChangesWithContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	inputs := map[string]rpath.AbsoluteSystemPath{"a.go": absPath(t, file)}
	h1, err := HashInputs("build", inputs)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))
	h2, err := HashInputs("build", inputs)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestPutThenRestoreRoundTrips(t *testing.T) {
	t.Parallel()
	workspace := t.TempDir()
	c, err := New(absPath(t, workspace))
	require.NoError(t, err)

	srcDir := t.TempDir()
	outFile := filepath.Join(srcDir, "dist", "out.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(outFile), 0o755))
	require.NoError(t, os.WriteFile(outFile, []byte("built"), 0o644))

	outputs := map[string]rpath.AbsoluteSystemPath{
		"dist/out.txt": absPath(t, outFile),
	}
	require.NoError(t, c.Put("deadbeef", absPath(t, srcDir), outputs))
	assert.True(t, c.Has("deadbeef"))

	restoreDir := t.TempDir()
	restored, err := c.Restore("deadbeef", absPath(t, restoreDir))
	require.NoError(t, err)
	require.Len(t, restored, 1)

	content, err := os.ReadFile(filepath.Join(restoreDir, "dist", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "built", string(content))
}

func TestHasFalseForUnknownHash(t *testing.T) {
	t.Parallel()
	c, err := New(absPath(t, t.TempDir()))
	require.NoError(t, err)
	assert.False(t, c.Has("nonexistent"))
}
