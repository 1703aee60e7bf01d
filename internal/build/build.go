package build

import (
	"context"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/cmkit/cmkit/internal/cmake"
)

// Build runs the build driver for the requested targets, one invocation
// per target in order. The empty target name means the default target.
// The first nonzero exit code aborts the remaining targets.
func (t *Task) Build(ctx context.Context, additionalTargets ...string) (Result, error) {
	exe, err := t.cmake()
	if err != nil {
		return Result{}, err
	}

	var targets []string
	if t.opts.Target != "" {
		targets = []string{t.opts.Target}
	} else {
		targets = append([]string{""}, additionalTargets...)
	}

	buildDir := t.opts.BuildDir
	gen := cmake.ResolveGenerator(buildDir, t.opts.CMakeArgs)

	env := t.env()
	if gen.Kind == cmake.KindVisualStudio {
		env = msbuildEnvironment(env)
	}

	for i, target := range targets {
		cmd := []string{exe, "--build", buildDir}
		if target != "" {
			if t.opts.TargetSkipUnavailable {
				has, err := cmake.HasTarget(ctx, t.opts.Runner, exe, buildDir, target, gen)
				if err != nil {
					return Result{}, err
				}
				if !has {
					log.Infof("skipping unavailable target %q in %q", target, buildDir)
					continue
				}
			}
			cmd = append(cmd, "--target", target)
		}
		if i == 0 && t.opts.CleanFirst {
			cmd = append(cmd, "--clean-first")
		}
		if gen.MultiConfig() {
			cmd = append(cmd, "--config", cmake.BuildType(buildDir, t.opts.CMakeArgs))
		}
		if gen.JobsBased() {
			if jobArgs := t.jobArguments(gen, env); len(jobArgs) > 0 {
				cmd = append(cmd, "--")
				cmd = append(cmd, jobArgs...)
			}
		}
		code, err := t.opts.Runner.Run(ctx, cmd, buildDir, env)
		if err != nil {
			return Result{}, err
		}
		if code != 0 {
			return Result{ExitCode: code}, nil
		}
	}
	return Result{}, nil
}

// msbuildEnvironment makes MSBuild compile with multiple processes by
// adding /MP to the CL variable, unless the user already set an /MP flag.
func msbuildEnvironment(env []string) []string {
	cl, idx := envValue(env, "CL")
	flags := strings.Fields(cl)
	for _, flag := range flags {
		if strings.HasPrefix(flag, "/MP") {
			return env
		}
	}
	flags = append(flags, "/MP")
	out := make([]string, len(env))
	copy(out, env)
	entry := "CL=" + strings.Join(flags, " ")
	if idx >= 0 {
		out[idx] = entry
		return out
	}
	return append(out, entry)
}

// envValue finds a variable in an environ-style list. idx is -1 when the
// variable is absent.
func envValue(env []string, key string) (string, int) {
	prefix := key + "="
	value, idx := "", -1
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			value, idx = kv[len(prefix):], i
		}
	}
	return value, idx
}
