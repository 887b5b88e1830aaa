// Package inference defines the asynchronous model boundary.
//
// An Engine scores one frame at a time and reports back through a
// completion callback that runs exactly once per Infer call, possibly on
// another goroutine. The package ships a detector-backed engine and a
// scriptable mock for tests.
package inference

import (
	"time"

	"github.com/teslashibe/go-lookout/pkg/detection"
)

// Frame is one captured image. The core borrows it for a single Infer call.
type Frame struct {
	Seq       uint64
	Data      []byte // JPEG
	Timestamp time.Time
}

// Result is the outcome of one Infer call.
// Exactly one of Observations or Err is meaningful.
type Result struct {
	Observations []detection.Observation
	Err          error
	Latency      time.Duration
}

// Completion receives the result of one Infer call
type Completion func(Result)

// Engine is the model boundary
type Engine interface {
	// Infer scores frame and calls done exactly once, asynchronously.
	Infer(frame Frame, done Completion)

	// Name identifies the engine in logs and errors
	Name() string

	// Close releases model resources. Infer after Close completes with ErrEngineClosed.
	Close() error
}
