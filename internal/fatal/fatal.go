// Package fatal provides the single fatal-assertion helper used to guard
// the invariants spec §7 classifies as unrecoverable: violating them means
// the engine's internal state can no longer be trusted, so the only sound
// response is to log and terminate rather than attempt to continue or
// return an error to a caller who cannot fix it.
//
// Grounded on the original implementation's ASSERT_CONDITION macro
// (src/lib/macros.h in original_source/), which logs the failing
// condition through the process logger and calls exit() rather than
// throwing, for the same "this can never be recovered from" reason.
package fatal

import (
	"fmt"

	"go.uber.org/zap"
)

// Check logs and terminates the process if cond is false. format/args are
// formatted with fmt.Sprintf to build the log message. logger may be nil,
// in which case the message still reaches stderr before exit.
func Check(cond bool, logger *zap.Logger, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if logger != nil {
		logger.Fatal(msg, zap.Stack("stack"))
		return
	}
	panic("fatal: " + msg)
}
