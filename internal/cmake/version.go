package cmake

import (
	"context"
	"regexp"
	"strings"

	"github.com/qiniu/x/log"
	"golang.org/x/mod/semver"

	"github.com/cmkit/cmkit/internal/runner"
)

// Expects strings of the form "cmake version 3.15.1".
var versionRe = regexp.MustCompile(`^(?:.*\s)?(\d+\.\d+\.\d+).*`)

// ParseVersionString extracts the numeric version from the first line of
// `cmake --version` output. The second return value is false when the
// string does not carry a version; that is not an error.
func ParseVersionString(s string) (string, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AtLeast reports whether version is at least min. Both are dotted
// numeric strings as returned by ParseVersionString.
func AtLeast(version, min string) bool {
	return semver.Compare("v"+version, "v"+min) >= 0
}

type versionState int

const (
	versionUnresolved versionState = iota
	versionResolved
	versionFailed
)

// VersionCache memoizes the version of the cmake executable for the
// lifetime of a process. A failed lookup is sticky: once the version
// could not be determined it is not probed again.
type VersionCache struct {
	state   versionState
	version string
}

func NewVersionCache() *VersionCache {
	return &VersionCache{}
}

// Get returns the cmake version, probing the executable on the first
// call. The second return value is false when the version is unknown.
func (c *VersionCache) Get(ctx context.Context, r runner.Runner, cmakeExe string) (string, bool) {
	if c.state == versionUnresolved {
		c.version, c.state = probeVersion(ctx, r, cmakeExe)
	}
	return c.version, c.state == versionResolved
}

func probeVersion(ctx context.Context, r runner.Runner, cmakeExe string) (string, versionState) {
	output, err := r.Output(ctx, []string{cmakeExe, "--version"}, "", nil)
	if err != nil {
		log.Warnf("failed to determine cmake version: %v", err)
		return "", versionFailed
	}
	lines := strings.SplitN(string(output), "\n", 2)
	if version, ok := ParseVersionString(strings.TrimRight(lines[0], "\r")); ok {
		return version, versionResolved
	}
	return "", versionFailed
}
