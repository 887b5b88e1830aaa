package camera

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Manager holds the live capture configuration and applies partial updates
// coming from the dashboard. The Source registers itself as OnConfigChange
// to reopen the device.
type Manager struct {
	mu      sync.RWMutex
	config  Config
	updates uint64

	// OnConfigChange applies an accepted config. If it fails the previous
	// config is restored.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a camera manager holding cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Updates returns how many configs have been applied.
func (m *Manager) Updates() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

// SetConfig validates and applies cfg.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	prev := m.config
	m.config = cfg
	apply := m.OnConfigChange
	m.mu.Unlock()

	if apply != nil {
		if err := apply(cfg); err != nil {
			m.mu.Lock()
			m.config = prev
			m.mu.Unlock()
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	m.mu.Lock()
	m.updates++
	m.mu.Unlock()
	return nil
}

// setter assigns one JSON value to a config field.
type setter func(cfg *Config, v interface{}) error

var setters = map[string]setter{
	"back_device":  stringField(func(c *Config) *string { return &c.BackDevice }),
	"front_device": stringField(func(c *Config) *string { return &c.FrontDevice }),
	"width":        intField(func(c *Config) *int { return &c.Width }),
	"height":       intField(func(c *Config) *int { return &c.Height }),
	"framerate":    intField(func(c *Config) *int { return &c.Framerate }),
	"quality":      intField(func(c *Config) *int { return &c.Quality }),
	"mirror":       boolField(func(c *Config) *bool { return &c.Mirror }),
}

// UpdateConfig applies a partial update. "preset" replaces the whole config
// first; the remaining keys override fields of the result. Unknown keys and
// mistyped values reject the whole update.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if v, ok := params["preset"]; ok {
		name, _ := v.(string)
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("unknown preset: %v", v)
		}
		cfg = *preset
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if key != "preset" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		set, ok := setters[key]
		if !ok {
			return fmt.Errorf("unknown camera parameter: %s", key)
		}
		if err := set(&cfg, params[key]); err != nil {
			return fmt.Errorf("camera parameter %s: %w", key, err)
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	data, _ := json.Marshal(m.GetConfig())
	var result map[string]interface{}
	json.Unmarshal(data, &result)
	return result
}

func stringField(field func(*Config) *string) setter {
	return func(cfg *Config, v interface{}) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		*field(cfg) = s
		return nil
	}
}

func intField(field func(*Config) *int) setter {
	return func(cfg *Config, v interface{}) error {
		n, ok := toInt(v)
		if !ok {
			return fmt.Errorf("want integer, got %T", v)
		}
		*field(cfg) = n
		return nil
	}
}

func boolField(field func(*Config) *bool) setter {
	return func(cfg *Config, v interface{}) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", v)
		}
		*field(cfg) = b
		return nil
	}
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
