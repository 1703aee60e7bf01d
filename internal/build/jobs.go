package build

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"

	"github.com/cmkit/cmkit/internal/cmake"
)

// Matches make flags controlling job count or load average, with or
// without the leading dash MAKEFLAGS strips from single-letter flags.
var jobFlagRe = regexp.MustCompile(`^(?:-?(?:j|l)(?:[0-9]+)?|(?:--)?(?:jobs|load-average)(?:=[0-9]+)?)$`)

// jobArguments returns the make-style arguments limiting concurrent jobs,
// e.g. ["-j4", "-l4"], or nil when none should be passed.
//
// When no explicit job count was requested and MAKEFLAGS already carries
// job control, nothing is appended so the user's settings stay in charge.
// Ninja does not read MAKEFLAGS, so the check only applies to Makefiles.
func (t *Task) jobArguments(gen cmake.Generator, env []string) []string {
	if gen.Kind == cmake.KindMakefiles && !t.opts.JobsSet {
		makeflags, _ := envValue(env, "MAKEFLAGS")
		if hasJobControl(makeflags) {
			return nil
		}
	}

	jobs := 0
	if t.opts.JobsSet {
		jobs = t.opts.Jobs
	}
	// A positive request passes through unclamped; asking for more jobs
	// than cores is the user's call.
	if jobs <= 0 {
		cores := t.cpuCount()
		if cores <= 0 {
			return nil
		}
		jobs = cores + jobs
		if jobs < 1 {
			jobs = 1
		}
	}
	return []string{fmt.Sprintf("-j%d", jobs), fmt.Sprintf("-l%d", jobs)}
}

// hasJobControl scans a MAKEFLAGS value for -j/-l/--jobs/--load-average.
func hasJobControl(makeflags string) bool {
	tokens, err := shlex.Split(makeflags)
	if err != nil {
		tokens = strings.Fields(makeflags)
	}
	for _, token := range tokens {
		if jobFlagRe.MatchString(token) {
			return true
		}
	}
	return false
}
