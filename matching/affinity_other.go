//go:build !linux

package matching

import "errors"

// pinCurrentThread is a no-op stub on platforms without
// sched_setaffinity (e.g. Darwin, whose thread-affinity API is an
// advisory hint rather than a hard pin and isn't exposed by
// golang.org/x/sys/unix the way Linux's is).
func pinCurrentThread(cpu int) error {
	return errors.New("matching: CPU affinity is not supported on this platform")
}
