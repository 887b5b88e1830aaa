// Package config loads go-lookout configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/audio"
	"github.com/teslashibe/go-lookout/pkg/behavior"
	"github.com/teslashibe/go-lookout/pkg/camera"
	"github.com/teslashibe/go-lookout/pkg/inference"
	"github.com/teslashibe/go-lookout/pkg/session"
	"github.com/teslashibe/go-lookout/pkg/web"
)

// Environment variables read by Load.
const (
	EnvTarget     = "LOOKOUT_TARGET"
	EnvModel      = "LOOKOUT_MODEL"
	EnvModelKind  = "LOOKOUT_MODEL_KIND"
	EnvPort       = "LOOKOUT_PORT"
	EnvLostPolicy = "LOOKOUT_LOST_POLICY"
	EnvLogLevel   = "LOOKOUT_LOG_LEVEL"
	EnvSoundDir   = "LOOKOUT_SOUND_DIR"
	EnvCountdown  = "LOOKOUT_COUNTDOWN"
)

// Sound backends.
const (
	SoundGStreamer = "gst"
	SoundLog       = "log"
)

// ModelConfig selects and tunes the inference engine.
type ModelConfig struct {
	Kind       string  `yaml:"kind"`
	Path       string  `yaml:"path"`
	Labels     string  `yaml:"labels"`
	Library    string  `yaml:"library"`
	Confidence float64 `yaml:"confidence"`
}

// Options converts the model section to engine options.
func (m ModelConfig) Options() []inference.Option {
	opts := []inference.Option{
		inference.WithKind(inference.Kind(m.Kind)),
		inference.WithModelPath(m.Path),
		inference.WithLogger(log.For("inference")),
	}
	if m.Labels != "" {
		opts = append(opts, inference.WithLabelsPath(m.Labels))
	}
	if m.Library != "" {
		opts = append(opts, inference.WithLibraryPath(m.Library))
	}
	if m.Confidence > 0 {
		opts = append(opts, inference.WithConfidenceThresh(m.Confidence))
	}
	return opts
}

// Config is the complete application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// StartMode is "countdown" or "reactive".
	StartMode string `yaml:"start_mode"`

	// Sound is "gst" to play through GStreamer or "log" to only log cues.
	Sound string `yaml:"sound"`

	Session session.Config `yaml:"session"`
	Model   ModelConfig    `yaml:"model"`
	Camera  camera.Config  `yaml:"camera"`
	Audio   audio.Config   `yaml:"audio"`
	Web     web.Config     `yaml:"web"`
}

// Default returns the built-in configuration.
func Default() Config {
	m := inference.DefaultConfig()
	return Config{
		LogLevel:  "info",
		StartMode: behavior.ModeCountdown.String(),
		Sound:     SoundGStreamer,
		Session:   session.DefaultConfig(),
		Model: ModelConfig{
			Kind:       string(m.Kind),
			Path:       m.ModelPath,
			Confidence: m.ConfidenceThresh,
		},
		Camera: camera.DefaultConfig(),
		Audio:  audio.DefaultConfig(),
		Web:    web.DefaultConfig(),
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Resolve(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Session.Stability.TargetID = envOr(EnvTarget, c.Session.Stability.TargetID)
	c.Model.Path = envOr(EnvModel, c.Model.Path)
	c.Model.Kind = envOr(EnvModelKind, c.Model.Kind)
	c.Web.Port = envOr(EnvPort, c.Web.Port)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
	c.Audio.SoundDir = envOr(EnvSoundDir, c.Audio.SoundDir)

	if v := os.Getenv(EnvLostPolicy); v != "" {
		p, err := behavior.ParseLostPolicy(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvLostPolicy, err)
		}
		c.Session.Behavior.LostPolicy = p
	}
	if v := os.Getenv(EnvCountdown); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvCountdown, err)
		}
		c.Session.Behavior.CountdownUnits = n
	}
	return nil
}

// Resolve derives fields that are not directly serializable and validates
// the result. Call it again after changing StartMode or other fields.
func (c *Config) Resolve() error {
	mode, err := ParseMode(c.StartMode)
	if err != nil {
		return err
	}
	c.Session.StartMode = mode

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Sound {
	case SoundGStreamer, SoundLog:
	default:
		return fmt.Errorf("config: unknown sound backend %q", c.Sound)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return fmt.Errorf("config: camera: %v", errs)
	}
	return nil
}

// ParseMode parses a start mode name.
func ParseMode(s string) (behavior.Mode, error) {
	switch s {
	case behavior.ModeCountdown.String(), "":
		return behavior.ModeCountdown, nil
	case behavior.ModeReactive.String():
		return behavior.ModeReactive, nil
	default:
		return behavior.ModeNone, fmt.Errorf("config: unknown start mode %q", s)
	}
}

// envOr returns the env var value, falling back to def if unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
