package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetLegacy   = "legacy"
	Preset1080p    = "1080p"
	PresetLowPower = "lowpower"
	PresetSmooth   = "smooth"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetLegacy:   LegacyConfig(),
		Preset1080p:    HD1080Config(),
		PresetLowPower: LowPowerConfig(),
		PresetSmooth:   SmoothConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset1080p,
		PresetLowPower,
		PresetSmooth,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// HD1080Config returns 1080p. Inference downsizes anyway, so this mostly
// helps the overlay preview.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// LowPowerConfig offers fewer, smaller frames. Most are dropped while an
// inference is outstanding, so a lower rate costs little responsiveness.
func LowPowerConfig() Config {
	cfg := LegacyConfig()
	cfg.Framerate = 10
	cfg.Quality = 70
	return cfg
}

// SmoothConfig offers 60 fps for fast models.
func SmoothConfig() Config {
	cfg := DefaultConfig()
	cfg.Framerate = 60
	return cfg
}
