package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cmkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func names(pkgs []Package) []string {
	out := make([]string, len(pkgs))
	for i, pkg := range pkgs {
		out[i] = pkg.Name
	}
	return out
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `
packages:
  - name: core
    path: src/core
  - name: tools
    depends: [core]
`)
	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Packages, 2)
	assert.Equal(t, "src/core", m.Packages[0].Path)
	// path defaults to the package name
	assert.Equal(t, "tools", m.Packages[1].Path)
	assert.Equal(t, []string{"core"}, m.Packages[1].Depends)
}

func TestLoadRejectsBadManifests(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeManifest(t, "packages: ["))
		assert.Error(t, err)
	})
	t.Run("unnamed package", func(t *testing.T) {
		_, err := Load(writeManifest(t, "packages:\n  - path: somewhere\n"))
		assert.Error(t, err)
	})
	t.Run("duplicate package", func(t *testing.T) {
		_, err := Load(writeManifest(t, "packages:\n  - name: a\n  - name: a\n"))
		assert.Error(t, err)
	})
}

func TestBuildOrder(t *testing.T) {
	t.Run("dependencies come first", func(t *testing.T) {
		m := &Manifest{Packages: []Package{
			{Name: "app", Depends: []string{"ui", "core"}},
			{Name: "ui", Depends: []string{"core"}},
			{Name: "core"},
		}}
		ordered, err := m.BuildOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"core", "ui", "app"}, names(ordered))
	})

	t.Run("diamond builds shared dependency once", func(t *testing.T) {
		m := &Manifest{Packages: []Package{
			{Name: "app", Depends: []string{"left", "right"}},
			{Name: "left", Depends: []string{"base"}},
			{Name: "right", Depends: []string{"base"}},
			{Name: "base"},
		}}
		ordered, err := m.BuildOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "left", "right", "app"}, names(ordered))
	})

	t.Run("cycle", func(t *testing.T) {
		m := &Manifest{Packages: []Package{
			{Name: "a", Depends: []string{"b"}},
			{Name: "b", Depends: []string{"a"}},
		}}
		_, err := m.BuildOrder()
		assert.ErrorContains(t, err, "cycle")
	})

	t.Run("unknown dependency", func(t *testing.T) {
		m := &Manifest{Packages: []Package{
			{Name: "a", Depends: []string{"ghost"}},
		}}
		_, err := m.BuildOrder()
		assert.ErrorContains(t, err, "unknown package")
	})
}
