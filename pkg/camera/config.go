// Package camera captures frames from local video devices and hands them to
// the detection pipeline.
package camera

// Facing selects which physical camera feeds the pipeline.
type Facing string

const (
	// FacingBack is used while searching for the target in countdown mode.
	FacingBack Facing = "back"
	// FacingFront is used in reactive mode.
	FacingFront Facing = "front"
)

// Config holds capture parameters. It can be changed at runtime through
// the Manager.
type Config struct {
	// Devices, as accepted by OpenCV: an index ("0") or a file/stream URL.
	BackDevice  string `json:"back_device" yaml:"back_device"`
	FrontDevice string `json:"front_device" yaml:"front_device"`

	Width     int `json:"width" yaml:"width"`         // Frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Frames offered to the pipeline per second
	Quality   int `json:"quality" yaml:"quality"`     // JPEG quality 1-100

	// Mirror flips front camera frames horizontally.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

// Capture limits.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 720p at 30 fps with both facings on device 0.
func DefaultConfig() Config {
	return Config{
		BackDevice:  "0",
		FrontDevice: "0",
		Width:       1280,
		Height:      720,
		Framerate:   30,
		Quality:     85,
		Mirror:      true,
	}
}

// LegacyConfig returns 640x480 for older webcams.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// Device returns the device configured for f.
func (c Config) Device(f Facing) string {
	if f == FacingFront {
		return c.FrontDevice
	}
	return c.BackDevice
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.BackDevice == "" || c.FrontDevice == "" {
		errors = append(errors, "back_device and front_device are required")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

// Capabilities returns the supported ranges for the dashboard.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"facings":       []string{string(FacingBack), string(FacingFront)},
		"presets":       PresetNames(),
	}
}
