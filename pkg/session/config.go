package session

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/teslashibe/go-lookout/pkg/behavior"
	"github.com/teslashibe/go-lookout/pkg/present"
	"github.com/teslashibe/go-lookout/pkg/stability"
)

// Config aggregates the settings of every stage the session drives.
type Config struct {
	Stability stability.Config `json:"stability" yaml:"stability"`
	Behavior  behavior.Config  `json:"behavior" yaml:"behavior"`

	// View is the overlay coordinate space.
	View present.Size `json:"view" yaml:"view"`

	// StartMode is entered when Run begins.
	StartMode behavior.Mode `json:"-" yaml:"-"`

	// LoopBuffer is the coordination loop's task buffer.
	LoopBuffer int `json:"loop_buffer" yaml:"loop_buffer"`
}

// DefaultConfig returns a countdown-first session with stock thresholds.
func DefaultConfig() Config {
	return Config{
		Stability:  stability.DefaultConfig(),
		Behavior:   behavior.DefaultConfig(),
		View:       present.Size{Width: 1280, Height: 720},
		StartMode:  behavior.ModeCountdown,
		LoopBuffer: 64,
	}
}

// Validate checks every nested config.
func (c Config) Validate() error {
	if err := c.Stability.Validate(); err != nil {
		return err
	}
	if err := c.Behavior.Validate(); err != nil {
		return err
	}
	if c.StartMode != behavior.ModeCountdown && c.StartMode != behavior.ModeReactive {
		return fmt.Errorf("session: invalid start mode %v", c.StartMode)
	}
	return nil
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock used for behavior timers.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clk = clk }
}

// WithStartMode overrides Config.StartMode.
func WithStartMode(m behavior.Mode) Option {
	return func(s *Session) { s.cfg.StartMode = m }
}

// WithSubscriber registers a handler before the session starts.
func WithSubscriber(fn func(Event)) Option {
	return func(s *Session) { s.handlers = append(s.handlers, fn) }
}
