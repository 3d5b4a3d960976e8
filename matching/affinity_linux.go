//go:build linux

package matching

import "golang.org/x/sys/unix"

// pinCurrentThread pins the calling OS thread (already locked via
// runtime.LockOSThread by the caller) to the given CPU core.
func pinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
