package inference

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrModelUnavailable is returned when the model cannot be initialized.
	// It is fatal to detection: no further frames are submitted.
	ErrModelUnavailable = errors.New("inference: model unavailable")

	// ErrInferenceFailed is returned when a single inference call fails.
	// It is recoverable and does not count as a miss.
	ErrInferenceFailed = errors.New("inference: inference failed")

	// ErrNoResults is returned when the model produced no usable output.
	// It is handled like ErrInferenceFailed but logged at debug level.
	ErrNoResults = errors.New("inference: no results")

	// ErrPermissionDenied is returned when the frame source is not accessible.
	// Detection idles until permission is granted again.
	ErrPermissionDenied = errors.New("inference: camera permission denied")

	// ErrEngineClosed is returned for Infer calls after Close.
	ErrEngineClosed = errors.New("inference: engine closed")
)

// InferenceError wraps a per-frame failure with engine and frame context.
type InferenceError struct {
	// Seq is the frame sequence number that failed.
	Seq uint64

	// Engine identifies which engine failed.
	Engine string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference [%s] frame %d: %v", e.Engine, e.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *InferenceError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with engine and frame context.
func WrapError(engine string, seq uint64, err error) error {
	if err == nil {
		return nil
	}
	return &InferenceError{Seq: seq, Engine: engine, Err: err}
}

// IsFatal reports whether err disables detection for the rest of the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}

// IsSkip reports whether err means "no data for this cycle".
// Skipped cycles neither reset nor advance the miss counter.
func IsSkip(err error) bool {
	return err != nil && !IsFatal(err)
}
