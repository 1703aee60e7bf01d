// Package runner abstracts external process execution so that command
// construction can be exercised in tests without invoking real tools.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Runner executes external commands. Implementations must report the
// command's exit code separately from execution errors: a nonzero exit is
// not an error, failing to start the process is.
type Runner interface {
	// Run executes argv in dir and streams its output. env is the full
	// environment for the process; nil inherits the current environment.
	Run(ctx context.Context, argv []string, dir string, env []string) (int, error)

	// Output executes argv in dir and returns its combined output.
	Output(ctx context.Context, argv []string, dir string, env []string) ([]byte, error)
}

// Exec is the exec.Cmd backed Runner used outside of tests.
type Exec struct{}

var _ Runner = Exec{}

func (Exec) Run(ctx context.Context, argv []string, dir string, env []string) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	return exitCode(err)
}

func (Exec) Output(ctx context.Context, argv []string, dir string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return buf.Bytes(), err
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
