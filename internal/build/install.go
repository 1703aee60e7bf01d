package build

import (
	"context"

	"github.com/qiniu/x/log"

	"github.com/cmkit/cmkit/internal/cmake"
)

// installVersion is the first cmake release supporting `cmake --install`.
const installVersion = "3.15.0"

// Install runs the install step. Recent cmake releases get the native
// --install verb; older or undetermined versions fall back to building
// the install target, which implicitly runs a build.
func (t *Task) Install(ctx context.Context) (Result, error) {
	exe, err := t.cmake()
	if err != nil {
		return Result{}, err
	}

	buildDir := t.opts.BuildDir
	gen := cmake.ResolveGenerator(buildDir, t.opts.CMakeArgs)
	allowJobArgs := gen.JobsBased()

	cmd := []string{exe}
	version, known := t.opts.Versions.Get(ctx, t.opts.Runner, exe)
	if known && cmake.AtLeast(version, installVersion) {
		cmd = append(cmd, "--install", buildDir)
		// job args are not compatible with the --install directive
		allowJobArgs = false
	} else {
		if !known {
			log.Warnf("unable to determine cmake version, building the install target instead of invoking 'cmake --install'")
		}
		cmd = append(cmd, "--build", buildDir, "--target", "install")
	}

	env := t.env()
	if gen.MultiConfig() {
		cmd = append(cmd, "--config", cmake.BuildType(buildDir, t.opts.CMakeArgs))
	}
	if allowJobArgs {
		if jobArgs := t.jobArguments(gen, env); len(jobArgs) > 0 {
			cmd = append(cmd, "--")
			cmd = append(cmd, jobArgs...)
		}
	}

	code, err := t.opts.Runner.Run(ctx, cmd, buildDir, env)
	if err != nil {
		return Result{}, err
	}
	return Result{ExitCode: code}, nil
}
