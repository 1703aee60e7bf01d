// Package cmake inspects the state CMake leaves in a build directory:
// the cache, the generator and its buildfile, and the generated targets.
package cmake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cmkit/cmkit/internal/runner"
)

// Environment variables overriding the executable lookup on PATH.
const (
	CMakeCommandEnv = "CMAKE_COMMAND"
	CTestCommandEnv = "CTEST_COMMAND"
)

// CacheFileName is the file CMake persists its configuration in.
const CacheFileName = "CMakeCache.txt"

// ErrMissingExecutable reports that a required external tool could not be
// located, neither via its override variable nor on PATH.
var ErrMissingExecutable = errors.New("executable not found")

// FindCMake locates the cmake executable, honoring CMAKE_COMMAND.
func FindCMake() (string, error) {
	return findExecutable(CMakeCommandEnv, "cmake")
}

// FindCTest locates the ctest executable, honoring CTEST_COMMAND.
func FindCTest() (string, error) {
	return findExecutable(CTestCommandEnv, "ctest")
}

func findExecutable(envVar, name string) (string, error) {
	if value := os.Getenv(envVar); value != "" {
		return value, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingExecutable, name)
	}
	return path, nil
}

// CacheVariable reads a variable from the CMakeCache.txt in buildDir.
// Lines have the form NAME:TYPE=value. The second return value is false
// when the cache does not exist or does not define the variable.
func CacheVariable(buildDir, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(buildDir, CacheFileName))
	if err != nil {
		return "", false
	}
	prefix := name + ":"
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		return strings.TrimRight(line[idx+1:], "\r"), true
	}
	return "", false
}

// Kind is the generator family, which determines how build commands are
// constructed and how targets are listed.
type Kind int

const (
	KindUnknown Kind = iota
	KindMakefiles
	KindNinja
	KindVisualStudio
	KindXcode
)

// Generator is the resolved CMake generator of a build directory.
type Generator struct {
	Name string
	Kind Kind
}

func classify(name string) Kind {
	switch {
	case strings.Contains(name, "Makefiles"):
		return KindMakefiles
	case strings.Contains(name, "Ninja"):
		return KindNinja
	case strings.Contains(name, "Visual Studio"):
		return KindVisualStudio
	case strings.Contains(name, "Xcode"):
		return KindXcode
	default:
		return KindUnknown
	}
}

// MultiConfig reports whether the generator keeps multiple build
// configurations (Debug, Release, ...) in one build directory.
func (g Generator) MultiConfig() bool {
	return g.Kind == KindVisualStudio || g.Kind == KindXcode
}

// JobsBased reports whether the generator accepts make-style job flags.
func (g Generator) JobsBased() bool {
	return g.Kind == KindMakefiles || g.Kind == KindNinja
}

// Buildfile returns the path of the generated build script. Its presence
// signals a completed configure step: CMake writes the cache before
// generating, so a failed configure can leave a cache without a buildfile.
func (g Generator) Buildfile(buildDir string) string {
	if g.Kind == KindNinja {
		return filepath.Join(buildDir, "build.ninja")
	}
	return filepath.Join(buildDir, "Makefile")
}

// ResolveGenerator determines the generator of a build directory. An
// explicit -G argument takes priority over the cached CMAKE_GENERATOR.
func ResolveGenerator(buildDir string, cmakeArgs []string) Generator {
	name := ""
	for i, arg := range cmakeArgs {
		if arg == "-G" && i < len(cmakeArgs)-1 {
			name = cmakeArgs[i+1]
		} else if strings.HasPrefix(arg, "-G") && len(arg) > 2 {
			name = arg[2:]
		}
	}
	if name == "" {
		name, _ = CacheVariable(buildDir, "CMAKE_GENERATOR")
	}
	return Generator{Name: name, Kind: classify(name)}
}

// BuildType resolves the configuration to select at build time for
// multi-configuration generators. An explicit -DCMAKE_BUILD_TYPE= argument
// wins over the cached variable; anything outside the known set maps to
// Release.
func BuildType(buildDir string, cmakeArgs []string) string {
	const argPrefix = "-DCMAKE_BUILD_TYPE="
	buildType, fromArgs := "", false
	for _, arg := range cmakeArgs {
		if strings.HasPrefix(arg, argPrefix) {
			buildType = arg[len(argPrefix):]
			fromArgs = true
		}
	}
	if !fromArgs {
		buildType, _ = CacheVariable(buildDir, "CMAKE_BUILD_TYPE")
	}
	switch buildType {
	case "Debug", "MinSizeRel", "RelWithDebInfo":
		return buildType
	}
	return "Release"
}

// HasTarget checks whether the generated build system defines a target.
// Makefiles and Ninja are probed via the generator's help output, Visual
// Studio via the presence of the target's project file.
func HasTarget(ctx context.Context, r runner.Runner, cmakeExe, buildDir, target string, gen Generator) (bool, error) {
	switch gen.Kind {
	case KindMakefiles:
		targets, err := makefileTargets(ctx, r, cmakeExe, buildDir)
		if err != nil {
			return false, err
		}
		return contains(targets, target), nil
	case KindNinja:
		targets, err := ninjaTargets(ctx, r, cmakeExe, buildDir)
		if err != nil {
			return false, err
		}
		return contains(targets, target), nil
	case KindVisualStudio:
		name := target
		if target == "install" {
			name = "INSTALL"
		}
		return ProjectFile(buildDir, name) != "", nil
	}
	return false, fmt.Errorf("target listing not supported for generator %q", gen.Name)
}

// makefileTargets lists the targets of a generated Makefile. The help
// target prints one line per target prefixed with "... ".
func makefileTargets(ctx context.Context, r runner.Runner, cmakeExe, buildDir string) ([]string, error) {
	output, err := r.Output(ctx, []string{cmakeExe, "--build", buildDir, "--target", "help"}, buildDir, nil)
	if err != nil {
		return nil, err
	}
	const prefix = "... "
	var targets []string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, prefix) {
			targets = append(targets, strings.TrimRight(line[len(prefix):], "\r"))
		}
	}
	return targets, nil
}

// ninjaTargets lists the targets of a build.ninja file. The help output
// has one "name: kind" line per target.
func ninjaTargets(ctx context.Context, r runner.Runner, cmakeExe, buildDir string) ([]string, error) {
	output, err := r.Output(ctx, []string{cmakeExe, "--build", buildDir, "--target", "help"}, buildDir, nil)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), " ")
		if len(fields) == 2 && strings.HasSuffix(fields[0], ":") {
			targets = append(targets, strings.TrimSuffix(fields[0], ":"))
		}
	}
	return targets, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ProjectFile returns the path of a Visual Studio project file for the
// given target, or "" when it does not exist.
func ProjectFile(buildDir, target string) string {
	path := filepath.Join(buildDir, target+".vcxproj")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

// VisualStudioVersion returns the toolset version set by a Visual Studio
// command prompt, or "" when unset.
func VisualStudioVersion() string {
	return os.Getenv("VisualStudioVersion")
}
