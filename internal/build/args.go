package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"
)

// lastArgsFile records the cmake arguments requested for the most recent
// configure attempt, whether or not it succeeded.
const lastArgsFile = "cmake_args.last"

// loadLastArgs reads the arguments of the previous run. A missing or
// unparseable file reads as "no previous arguments".
func loadLastArgs(buildDir string) []string {
	path := filepath.Join(buildDir, lastArgsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var args []string
	if err := json.Unmarshal(data, &args); err != nil {
		log.Errorf("failed to parse previous cmake arguments from %q: %v", path, err)
		return nil
	}
	return args
}

// storeLastArgs persists the requested arguments for the next run's
// reconfigure decision.
func storeLastArgs(buildDir string, args []string) error {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	path := filepath.Join(buildDir, lastArgsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storing cmake arguments: %w", err)
	}
	return nil
}
