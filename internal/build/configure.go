package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/cmkit/cmkit/internal/cmake"
)

// Generators for the toolset versions a Visual Studio command prompt may
// advertise. Anything else is unsupported.
var visualStudioGenerators = map[string]string{
	"16.0": "Visual Studio 16 2019",
	"15.0": "Visual Studio 15 2017",
	"14.0": "Visual Studio 14 2015",
}

// Configure decides whether the build directory needs a (re)configure
// step and runs it if so. The configure step runs when any of the
// following holds, checked in order:
//
//  1. the configure step is forced
//  2. the cache was cleaned (the cache file is removed first)
//  3. no CMake cache exists
//  4. a cache exists but the generator's buildfile does not (a previous
//     configure failed after writing the cache)
//  5. the extra cmake arguments differ from those of the last run
//
// The requested arguments are persisted before running CMake so that a
// crash mid-configure cannot make the next run trust stale arguments.
func (t *Task) Configure(ctx context.Context) (Result, error) {
	if _, err := os.Stat(filepath.Join(t.opts.SourceDir, "CMakeLists.txt")); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNotAProject, t.opts.SourceDir)
	}

	buildDir := t.opts.BuildDir
	cachePath := filepath.Join(buildDir, cmake.CacheFileName)

	runConfigure := t.opts.ForceConfigure
	if t.opts.CleanCache {
		if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
			return Result{}, fmt.Errorf("removing cmake cache: %w", err)
		}
		runConfigure = true
	}
	if !runConfigure {
		if _, err := os.Stat(cachePath); err != nil {
			runConfigure = true
		}
	}
	if !runConfigure {
		gen := cmake.ResolveGenerator(buildDir, nil)
		if _, err := os.Stat(gen.Buildfile(buildDir)); err != nil {
			runConfigure = true
		}
	}
	if !runConfigure {
		last := loadLastArgs(buildDir)
		runConfigure = !slices.Equal(t.opts.CMakeArgs, last)
	}
	if err := storeLastArgs(buildDir, t.opts.CMakeArgs); err != nil {
		return Result{}, err
	}

	if runConfigure {
		res, err := t.runConfigure(ctx)
		if err != nil || res.ExitCode != 0 {
			return res, err
		}
	}

	// The cache must name a project; otherwise the CMake code never
	// called project() and the package cannot be built.
	if _, ok := cmake.CacheVariable(buildDir, "CMAKE_PROJECT_NAME"); !ok {
		return Result{Skipped: true}, ErrNoProjectDeclared
	}
	return Result{}, nil
}

func (t *Task) runConfigure(ctx context.Context) (Result, error) {
	buildDir := t.opts.BuildDir

	args := []string{t.opts.SourceDir}
	args = append(args, t.opts.CMakeArgs...)
	args = append(args, "-DCMAKE_INSTALL_PREFIX="+t.opts.InstallDir)

	gen := cmake.ResolveGenerator(buildDir, t.opts.CMakeArgs)
	if runtime.GOOS == "windows" && gen.Name == "" {
		extra, err := visualStudioArgs(args)
		if err != nil {
			return Result{}, err
		}
		args = append(args, extra...)
		gen = cmake.ResolveGenerator(buildDir, args)
	}

	exe, err := t.cmake()
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return Result{}, err
	}

	code, err := t.opts.Runner.Run(ctx, append([]string{exe}, args...), buildDir, t.env())
	if err != nil {
		return Result{}, err
	}
	if code != 0 {
		// CMake may have written the cache before failing. The generator
		// recorded there is authoritative (a first-ever configure without
		// -G resolves to the default generator only at run time), so
		// re-resolve before removing the buildfile, forcing the next
		// invocation to reconfigure.
		gen = cmake.ResolveGenerator(buildDir, t.opts.CMakeArgs)
		buildfile := gen.Buildfile(buildDir)
		if err := os.Remove(buildfile); err != nil && !os.IsNotExist(err) {
			return Result{ExitCode: code}, fmt.Errorf("removing %s: %w", buildfile, err)
		}
		return Result{ExitCode: code}, nil
	}
	return Result{}, nil
}

// visualStudioArgs selects a Visual Studio generator from the toolset
// version in the environment. VS 14 and 15 default to Win32, so x64 is
// chosen explicitly unless the caller picked an architecture.
func visualStudioArgs(cmakeArgs []string) ([]string, error) {
	vsv := cmake.VisualStudioVersion()
	if vsv == "" {
		return nil, ErrToolsetVersionUnresolved
	}
	generator, ok := visualStudioGenerators[vsv]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedToolsetVersion, vsv)
	}
	args := []string{"-G", generator}
	if (vsv == "14.0" || vsv == "15.0") && !slices.Contains(cmakeArgs, "-A") {
		args = append(args, "-A", "x64")
	}
	return args, nil
}
