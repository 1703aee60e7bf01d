// Package compilecmds merges the per-package compile_commands.json files
// of a workspace into one file at the root of the build directory.
package compilecmds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/qiniu/x/log"
	"gopkg.in/yaml.v3"
)

// FileName is the name of both the per-package artifacts and the merged
// workspace-level file.
const FileName = "compile_commands.json"

// Aggregator collects the names of every package scheduled in a run and
// merges their compile command artifacts at shutdown. Packages are
// recorded even when their build never runs, so leftover artifacts from a
// previous run still contribute.
//
// RecordKnown and Finalize are expected to be called from a single
// goroutine; no internal synchronization is performed.
type Aggregator struct {
	known map[string]struct{}
}

func New() *Aggregator {
	return &Aggregator{known: make(map[string]struct{})}
}

// RecordKnown registers a package identifier as part of this run.
func (a *Aggregator) RecordKnown(pkg string) {
	a.known[pkg] = struct{}{}
}

// Finalize writes the merged workspace artifact under buildBase. The
// output is a pure function of the per-package artifact files existing on
// disk now, ordered by package name: arrival order, skipped packages and
// aborted builds make no difference. When no per-package data exists the
// workspace file is removed instead.
func (a *Aggregator) Finalize(buildBase string) error {
	var existing []string
	var newest time.Time
	for pkg := range a.known {
		info, err := os.Stat(a.artifactPath(buildBase, pkg))
		if err != nil {
			continue
		}
		existing = append(existing, pkg)
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	sort.Strings(existing)

	mergedPath := filepath.Join(buildBase, FileName)
	if len(existing) == 0 {
		return removeIfExists(mergedPath)
	}

	// Skip regeneration when the merged file is strictly newer than every
	// per-package artifact. Ties regenerate: a tie must never be able to
	// hide an update forever.
	if info, err := os.Stat(mergedPath); err == nil && info.ModTime().After(newest) {
		return nil
	}

	var merged []any
	for _, pkg := range existing {
		merged = append(merged, a.loadArtifact(buildBase, pkg)...)
	}
	if len(merged) == 0 {
		return removeIfExists(mergedPath)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", FileName, err)
	}
	return os.WriteFile(mergedPath, append(data, '\n'), 0o644)
}

// loadArtifact parses one package's artifact. A parse failure or an
// unexpected structure drops that package's contribution with a warning;
// it is never fatal to the aggregation.
func (a *Aggregator) loadArtifact(buildBase, pkg string) []any {
	path := a.artifactPath(buildBase, pkg)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("failed to read %q: %v", path, err)
		return nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Warnf("failed to parse %q: %v", path, err)
		return nil
	}
	entries, ok := doc.([]any)
	if !ok {
		log.Warnf("data in %q is expected to be a list", path)
		return nil
	}
	return entries
}

func (a *Aggregator) artifactPath(buildBase, pkg string) string {
	return filepath.Join(buildBase, pkg, FileName)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
