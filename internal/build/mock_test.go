package build

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// fakeRunner implements runner.Runner for testing command construction
// without invoking real tools. Run records every invocation and lets the
// test script side effects and exit codes; Output answers the target
// listing and version probes.
type fakeRunner struct {
	runs [][]string
	dirs []string

	// onRun simulates side effects of the command (e.g. CMake writing its
	// cache and buildfile).
	onRun func(argv []string, dir string)

	// exit determines the exit code per invocation; nil means 0.
	exit func(argv []string) int

	helpOutput    []byte
	versionOutput []byte
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, dir string, env []string) (int, error) {
	f.runs = append(f.runs, argv)
	f.dirs = append(f.dirs, dir)
	if f.onRun != nil {
		f.onRun(argv, dir)
	}
	if f.exit != nil {
		return f.exit(argv), nil
	}
	return 0, nil
}

func (f *fakeRunner) Output(ctx context.Context, argv []string, dir string, env []string) ([]byte, error) {
	if slices.Contains(argv, "--version") {
		return f.versionOutput, nil
	}
	return f.helpOutput, nil
}

// writeConfigured simulates a successful CMake configure run: the cache
// names a generator and a project, and the buildfile exists.
func writeConfigured(t *testing.T, buildDir, generator, cacheExtra string) {
	t.Helper()
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", buildDir, err)
	}
	cache := "CMAKE_GENERATOR:INTERNAL=" + generator + "\nCMAKE_PROJECT_NAME:STATIC=demo\n" + cacheExtra
	if err := os.WriteFile(filepath.Join(buildDir, "CMakeCache.txt"), []byte(cache), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	buildfile := "Makefile"
	if generator == "Ninja" {
		buildfile = "build.ninja"
	}
	if err := os.WriteFile(filepath.Join(buildDir, buildfile), []byte("# generated\n"), 0o644); err != nil {
		t.Fatalf("write buildfile: %v", err)
	}
}

// newSourceDir creates a source directory containing a CMakeLists.txt.
func newSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(demo)\n"), 0o644); err != nil {
		t.Fatalf("write CMakeLists.txt: %v", err)
	}
	return dir
}
