package cmake

import "context"

// fakeRunner implements runner.Runner for testing. Output returns the
// scripted output; Run records the invocation and returns exit.
type fakeRunner struct {
	output      []byte
	outputErr   error
	outputCalls int
	runs        [][]string
	exit        int
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, dir string, env []string) (int, error) {
	f.runs = append(f.runs, argv)
	return f.exit, nil
}

func (f *fakeRunner) Output(ctx context.Context, argv []string, dir string, env []string) ([]byte, error) {
	f.outputCalls++
	return f.output, f.outputErr
}
