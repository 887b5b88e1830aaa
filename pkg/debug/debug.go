// Package debug provides global switches for verbose trace output
package debug

import (
	"fmt"

	"github.com/teslashibe/go-lookout/internal/log"
)

// Enabled controls whether general debug traces are emitted
var Enabled bool

// Frames controls per-frame traces (dispatch, drop, completion).
// These fire at sensor rate, so they are off even when Enabled is set.
var Frames bool

// Logf emits a debug trace if Enabled is set
func Logf(format string, args ...any) {
	if Enabled {
		log.Debug(fmt.Sprintf(format, args...))
	}
}

// Framef emits a per-frame trace if Frames is set
func Framef(format string, args ...any) {
	if Frames {
		log.Debug(fmt.Sprintf(format, args...), "trace", "frame")
	}
}
