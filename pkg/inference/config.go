package inference

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-lookout/pkg/detection"
)

// Kind selects the detection backend.
type Kind string

const (
	// KindYOLO runs a YOLOv8 object detector (COCO labels, boxes).
	KindYOLO Kind = "yolo"

	// KindYuNet runs the YuNet face detector (identifier "face").
	KindYuNet Kind = "yunet"

	// KindClassifier runs an ONNX image classifier (ranked labels, full-frame box).
	KindClassifier Kind = "classifier"
)

// Config holds engine configuration.
type Config struct {
	Kind Kind

	// Model files
	ModelPath   string
	LabelsPath  string // classifier only
	LibraryPath string // onnxruntime shared library, classifier only

	// Backend tuning
	ConfidenceThresh float64
	TopK             int

	// SlowThreshold logs inferences slower than this at warn level.
	SlowThreshold time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring engines.
type Option func(*Config)

// WithKind sets the backend kind.
func WithKind(k Kind) Option {
	return func(c *Config) { c.Kind = k }
}

// WithModelPath sets the model file.
func WithModelPath(path string) Option {
	return func(c *Config) { c.ModelPath = path }
}

// WithLabelsPath sets the classifier labels file.
func WithLabelsPath(path string) Option {
	return func(c *Config) { c.LabelsPath = path }
}

// WithLibraryPath sets the onnxruntime shared library path.
func WithLibraryPath(path string) Option {
	return func(c *Config) { c.LibraryPath = path }
}

// WithConfidenceThresh sets the backend's minimum kept confidence.
func WithConfidenceThresh(v float64) Option {
	return func(c *Config) { c.ConfidenceThresh = v }
}

// WithSlowThreshold sets the slow-inference warning threshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Config) { c.SlowThreshold = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for the YOLO backend.
func DefaultConfig() Config {
	d := detection.DefaultYOLOConfig()
	return Config{
		Kind:             KindYOLO,
		ModelPath:        d.ModelPath,
		ConfidenceThresh: d.ConfidenceThresh,
		TopK:             d.TopK,
		SlowThreshold:    500 * time.Millisecond,
	}
}

// ApplyOptions returns a copy of cfg with opts applied.
func ApplyOptions(cfg Config, opts ...Option) Config {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Kind {
	case KindYOLO, KindYuNet, KindClassifier:
	default:
		return fmt.Errorf("inference: unknown engine kind %q", c.Kind)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("inference: model path required")
	}
	if c.Kind == KindClassifier && c.LabelsPath == "" {
		return fmt.Errorf("inference: classifier requires a labels file")
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("inference: confidence threshold %.2f out of range", c.ConfidenceThresh)
	}
	return nil
}

// OpenDetector builds the detector selected by cfg.Kind.
// Any failure is wrapped in ErrModelUnavailable.
func OpenDetector(cfg Config) (detection.Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var (
		det detection.Detector
		err error
	)
	switch cfg.Kind {
	case KindYOLO:
		yc := detection.DefaultYOLOConfig()
		yc.ModelPath = cfg.ModelPath
		yc.ConfidenceThresh = cfg.ConfidenceThresh
		det, err = detection.NewYOLO(yc)
	case KindYuNet:
		fc := detection.DefaultYuNetConfig()
		fc.ModelPath = cfg.ModelPath
		if cfg.ConfidenceThresh > 0 {
			fc.ConfidenceThresh = cfg.ConfidenceThresh
		}
		det, err = detection.NewYuNet(fc)
	case KindClassifier:
		cc := detection.DefaultClassifierConfig()
		cc.ModelPath = cfg.ModelPath
		cc.LabelsPath = cfg.LabelsPath
		cc.LibraryPath = cfg.LibraryPath
		cc.ConfidenceThresh = cfg.ConfidenceThresh
		if cfg.TopK > 0 {
			cc.TopK = cfg.TopK
		}
		det, err = detection.NewONNXClassifier(cc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return det, nil
}
