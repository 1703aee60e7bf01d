package build

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// availableCores returns the number of usable CPU cores, considering a
// restricted affinity set when one applies.
func availableCores() int {
	cores := runtime.NumCPU()
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 && n < cores {
			cores = n
		}
	}
	return cores
}
