//go:build !linux

package build

import "runtime"

// availableCores returns the number of usable CPU cores.
func availableCores() int {
	return runtime.NumCPU()
}
