// Package build drives the CMake configure, build and install steps for a
// single package, reconciling the persistent state of its build directory
// across repeated invocations.
package build

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/qiniu/x/log"

	"github.com/cmkit/cmkit/internal/cmake"
	"github.com/cmkit/cmkit/internal/runner"
)

// Named conditions raised by the build task. Subprocess failures are not
// errors; they are reported through Result.ExitCode.
var (
	// ErrNotAProject reports that the source directory has no
	// CMakeLists.txt at its root.
	ErrNotAProject = errors.New("source directory contains no CMakeLists.txt")

	// ErrNoProjectDeclared reports that the CMake cache carries no
	// CMAKE_PROJECT_NAME, i.e. the package never called project() and
	// cannot be built. Soft failure: no command was run.
	ErrNoProjectDeclared = errors.New("cmake cache has no CMAKE_PROJECT_NAME variable")

	// ErrToolsetVersionUnresolved reports that no generator was chosen on
	// Windows and VisualStudioVersion is not set.
	ErrToolsetVersionUnresolved = errors.New("VisualStudioVersion is not set, run within a Visual Studio command prompt")

	// ErrUnsupportedToolsetVersion reports a VisualStudioVersion with no
	// known generator mapping.
	ErrUnsupportedToolsetVersion = errors.New("unknown or unsupported Visual Studio version")
)

// Result reports the outcome of one step. A zero Result means success.
type Result struct {
	// ExitCode is the exit code of the failing external command, or 0.
	ExitCode int

	// Skipped reports that the step did not apply to this package. It is
	// not a failure.
	Skipped bool
}

// Options configures a Task.
type Options struct {
	BuildDir   string
	SourceDir  string
	InstallDir string

	// CMakeArgs are extra arguments passed verbatim to the configure step.
	CMakeArgs []string

	// Target builds a specific target instead of the default one. When
	// set, the install step is skipped.
	Target string

	// TargetSkipUnavailable skips (rather than fails) targets the
	// generated build system does not define.
	TargetSkipUnavailable bool

	// CleanCache removes the CMake cache before the build, implicitly
	// forcing the configure step.
	CleanCache bool

	// CleanFirst builds the "clean" target before the first target.
	CleanFirst bool

	// ForceConfigure forces the configure step.
	ForceConfigure bool

	// Jobs limits the number of simultaneous jobs for generators that
	// support it. Non-positive values subtract from the available cores,
	// so -1 uses all but one. Effective only when JobsSet is true.
	Jobs    int
	JobsSet bool

	// Runner executes external commands; defaults to runner.Exec.
	Runner runner.Runner

	// Versions caches the cmake version lookup; defaults to a fresh cache.
	Versions *cmake.VersionCache

	// Env is the full environment for spawned commands; nil inherits the
	// current environment.
	Env []string
}

// Task builds one CMake package. It is not safe for concurrent use on the
// same build directory: the persisted state files are read then written
// without locking.
type Task struct {
	opts Options

	exeOnce sync.Once
	exe     string
	exeErr  error

	// cpuCount is swapped out in tests.
	cpuCount func() int
}

func NewTask(opts Options) *Task {
	if opts.Runner == nil {
		opts.Runner = runner.Exec{}
	}
	if opts.Versions == nil {
		opts.Versions = cmake.NewVersionCache()
	}
	return &Task{opts: opts, cpuCount: availableCores}
}

// cmake resolves the cmake executable once per task. A missing executable
// is a fatal configuration error.
func (t *Task) cmake() (string, error) {
	t.exeOnce.Do(func() {
		t.exe, t.exeErr = cmake.FindCMake()
	})
	return t.exe, t.exeErr
}

func (t *Task) env() []string {
	if t.opts.Env != nil {
		return t.opts.Env
	}
	return os.Environ()
}

// Run performs the full configure, build, install sequence. The install
// step runs only when no explicit target was requested and the build
// system defines an install target.
func (t *Task) Run(ctx context.Context) (Result, error) {
	res, err := t.Configure(ctx)
	if errors.Is(err, ErrNoProjectDeclared) {
		log.Warnf("could not build %s: %v", t.opts.SourceDir, err)
		return Result{Skipped: true}, nil
	}
	if err != nil || res.ExitCode != 0 {
		return res, err
	}

	res, err = t.Build(ctx)
	if err != nil || res.ExitCode != 0 {
		return res, err
	}

	if t.opts.Target != "" {
		return Result{}, nil
	}
	exe, err := t.cmake()
	if err != nil {
		return Result{}, err
	}
	gen := cmake.ResolveGenerator(t.opts.BuildDir, t.opts.CMakeArgs)
	has, err := cmake.HasTarget(ctx, t.opts.Runner, exe, t.opts.BuildDir, "install", gen)
	if err != nil {
		log.Warnf("could not determine whether an install target exists in %q: %v", t.opts.BuildDir, err)
		return Result{}, nil
	}
	if !has {
		log.Warnf("skipping installation step for %q: no install target", t.opts.BuildDir)
		return Result{}, nil
	}
	return t.Install(ctx)
}
