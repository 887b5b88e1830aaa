package behavior

import (
	"fmt"
	"time"
)

// LostPolicy selects what reactive mode does when the target is lost.
type LostPolicy string

const (
	// LostPolicyImmediate stops the loop and exits as soon as the target is lost.
	LostPolicyImmediate LostPolicy = "immediate"

	// LostPolicyGrace keeps the loop running for GraceUnits and exits only
	// if the target has not come back by then.
	LostPolicyGrace LostPolicy = "grace"
)

// ParseLostPolicy accepts "immediate"/"a" and "grace"/"b".
func ParseLostPolicy(s string) (LostPolicy, error) {
	switch s {
	case "immediate", "a", "A":
		return LostPolicyImmediate, nil
	case "grace", "b", "B":
		return LostPolicyGrace, nil
	default:
		return "", fmt.Errorf("behavior: unknown lost policy %q", s)
	}
}

// Config holds orchestrator timing and sound settings.
type Config struct {
	LostPolicy LostPolicy `json:"lost_policy" yaml:"lost_policy"`

	// TimeUnit is the length of one countdown step.
	TimeUnit time.Duration `json:"time_unit" yaml:"time_unit"`

	CountdownUnits int `json:"countdown_units" yaml:"countdown_units"`
	GraceUnits     int `json:"grace_units" yaml:"grace_units"`

	// ConfirmUnits is the nominal length of the confirmation sound.
	ConfirmUnits int `json:"confirm_units" yaml:"confirm_units"`

	LoopSound    string `json:"loop_sound" yaml:"loop_sound"`
	ConfirmSound string `json:"confirm_sound" yaml:"confirm_sound"`

	// TickSound plays on every countdown step. Empty disables it.
	TickSound string `json:"tick_sound" yaml:"tick_sound"`
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		LostPolicy:     LostPolicyImmediate,
		TimeUnit:       time.Second,
		CountdownUnits: 5,
		GraceUnits:     3,
		ConfirmUnits:   1,
		LoopSound:      "chant",
		ConfirmSound:   "bell",
		TickSound:      "blip",
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if _, err := ParseLostPolicy(string(c.LostPolicy)); err != nil {
		return err
	}
	if c.TimeUnit <= 0 {
		return fmt.Errorf("behavior: time unit must be positive, got %v", c.TimeUnit)
	}
	if c.CountdownUnits < 1 {
		return fmt.Errorf("behavior: countdown units must be >= 1, got %d", c.CountdownUnits)
	}
	if c.GraceUnits < 0 || c.ConfirmUnits < 0 {
		return fmt.Errorf("behavior: grace/confirm units must be >= 0")
	}
	if c.LoopSound == "" {
		return fmt.Errorf("behavior: loop sound is required")
	}
	return nil
}

func (c Config) units(n int) time.Duration {
	return time.Duration(n) * c.TimeUnit
}
