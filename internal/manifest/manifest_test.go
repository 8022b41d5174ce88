package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reposcope.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAndGraph(t *testing.T) {
	t.Parallel()
	path := writeManifest(t, `{
		"packages": {
			"core": {"dir": "packages/core", "dependsOn": []},
			"ui": {"dir": "packages/ui", "dependsOn": ["core"]},
			"web": {"dir": "apps/web", "dependsOn": ["ui"], "tasks": ["build"]}
		},
		"tasks": {
			"build": {"command": "make build", "inputs": ["src/**"], "outputs": ["dist/**"]},
			"lint": {"command": "make lint", "inputs": ["src/**"], "outputs": []}
		}
	}`)

	m, err := Load(path)
	require.NoError(t, err)

	graph, err := m.Graph()
	require.NoError(t, err)

	assert.Equal(t, []string{"core"}, graph.Dependencies("ui"))
	assert.Equal(t, []string{"core", "ui"}, graph.Dependencies("web"))
	assert.Equal(t, []string{"ui", "web"}, graph.Dependents("core"))

	assert.True(t, m.DeclaresTask("core", "build"))
	assert.True(t, m.DeclaresTask("core", "lint"))
	assert.True(t, m.DeclaresTask("web", "build"))
	assert.False(t, m.DeclaresTask("web", "lint"))
}

func TestGraphRejectsUndeclaredDependency(t *testing.T) {
	t.Parallel()
	path := writeManifest(t, `{
		"packages": {
			"web": {"dir": "apps/web", "dependsOn": ["missing"]}
		}
	}`)

	m, err := Load(path)
	require.NoError(t, err)

	_, err = m.Graph()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
