// Package ctest runs a package's CTest suite in its configured build
// directory.
package ctest

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/cmkit/cmkit/internal/cmake"
	"github.com/cmkit/cmkit/internal/runner"
)

// testFailureExitCode is returned by ctest when tests ran but failed. It
// signals a recoverable test failure, not a build-system error.
const testFailureExitCode = 8

// Options configures a test run.
type Options struct {
	BuildDir string

	// CTestArgs are extra arguments passed verbatim to ctest.
	CTestArgs []string

	// RetestUntilFail repeats each test the given number of extra times
	// or until it fails.
	RetestUntilFail int

	// RetestUntilPass reruns failing tests up to the given number of
	// times.
	RetestUntilPass int

	// Runner executes external commands; defaults to runner.Exec.
	Runner runner.Runner

	// Env is the full environment for spawned commands; nil inherits the
	// current environment.
	Env []string
}

// Result reports the outcome of a test run.
type Result struct {
	// ExitCode is the exit code of the last ctest invocation. Test
	// failures report 0 here; see TestsFailed.
	ExitCode int

	// Skipped reports that the package defines no tests.
	Skipped bool

	// TestsFailed reports that tests ran and failed. The overall run may
	// continue.
	TestsFailed bool
}

// Run executes ctest in the build directory. The suite is probed first;
// packages without tests are skipped, not failed.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Runner == nil {
		opts.Runner = runner.Exec{}
	}
	if _, err := os.Stat(opts.BuildDir); err != nil {
		return Result{}, fmt.Errorf("build directory %q does not exist, has this package been built?", opts.BuildDir)
	}
	exe, err := cmake.FindCTest()
	if err != nil {
		return Result{}, err
	}

	hasTests, err := probeTests(ctx, opts, exe)
	if err != nil {
		return Result{}, err
	}
	if !hasTests {
		log.Infof("no ctests found in %q", opts.BuildDir)
		return Result{Skipped: true}, nil
	}

	ctestArgs := []string{
		// required by multi-configuration generators
		"-C", cmake.BuildType(opts.BuildDir, nil),
		// xml summary of the run
		"-D", "ExperimentalTest", "--no-compress-output",
		// all test output
		"-V",
		"--force-new-ctest-process",
	}
	ctestArgs = append(ctestArgs, opts.CTestArgs...)
	if opts.RetestUntilFail > 0 {
		ctestArgs = append(ctestArgs, "--repeat-until-fail", strconv.Itoa(opts.RetestUntilFail+1))
	}

	rerun := 0
	for {
		code, err := opts.Runner.Run(ctx, append([]string{exe}, ctestArgs...), opts.BuildDir, opts.Env)
		if err != nil {
			return Result{}, err
		}
		if code == 0 {
			return Result{}, nil
		}
		if opts.RetestUntilPass > rerun {
			if rerun == 0 {
				ctestArgs = append(ctestArgs, "--rerun-failed")
			}
			rerun++
			continue
		}
		if code == testFailureExitCode {
			return Result{TestsFailed: true}, nil
		}
		return Result{ExitCode: code}, nil
	}
}

// probeTests checks whether ctest knows any tests. The --show-only
// listing indents each test name by two spaces.
func probeTests(ctx context.Context, opts Options, exe string) (bool, error) {
	output, err := opts.Runner.Output(ctx, []string{exe, "--show-only"}, opts.BuildDir, opts.Env)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "  ") {
			return true, nil
		}
	}
	return false, nil
}
