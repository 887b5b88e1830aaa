package detection

import "errors"

var (
	// ErrModelNotFound is returned when the model file does not exist.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrModelLoad is returned when the model exists but cannot be loaded.
	ErrModelLoad = errors.New("detection: model failed to load")

	// ErrEmptyImage is returned when a frame decodes to nothing.
	ErrEmptyImage = errors.New("detection: empty image")
)
