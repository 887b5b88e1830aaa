package stability

import (
	"errors"
	"fmt"
)

// Config holds the thresholds that turn per-frame results into transitions.
type Config struct {
	// TargetID is the observation identifier that counts as the target.
	TargetID string `json:"target_id" yaml:"target_id"`

	// AcquireThreshold is the confidence an observation must exceed
	// (strictly) to qualify.
	AcquireThreshold float64 `json:"acquire_threshold" yaml:"acquire_threshold"`

	// DisplayThreshold filters the set published for presentation.
	DisplayThreshold float64 `json:"display_threshold" yaml:"display_threshold"`

	// DetectionThreshold is how many consecutive misses a lock survives.
	// The lock is released on miss DetectionThreshold+1.
	DetectionThreshold int `json:"detection_threshold" yaml:"detection_threshold"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		TargetID:           "buddha",
		AcquireThreshold:   0.8,
		DisplayThreshold:   0.5,
		DetectionThreshold: 5,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.TargetID == "" {
		return errors.New("stability: target id is required")
	}
	if c.AcquireThreshold < 0 || c.AcquireThreshold > 1 {
		return fmt.Errorf("stability: acquire threshold %.2f out of [0,1]", c.AcquireThreshold)
	}
	if c.DisplayThreshold < 0 || c.DisplayThreshold > 1 {
		return fmt.Errorf("stability: display threshold %.2f out of [0,1]", c.DisplayThreshold)
	}
	if c.DetectionThreshold < 0 {
		return fmt.Errorf("stability: detection threshold %d must be >= 0", c.DetectionThreshold)
	}
	return nil
}
