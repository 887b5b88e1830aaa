// Package detection turns camera frames into scored observations.
//
// Boxes are normalized to [0,1] with a bottom-left origin. Backends that
// produce top-left boxes (OpenCV, ONNX detectors) convert with FlipY before
// returning, so every consumer sees one convention.
package detection

import "sort"

// Rect is a normalized rectangle. X,Y is the corner nearest the origin.
type Rect struct {
	X, Y float64
	W, H float64
}

// Center returns the center point of the rectangle
func (r Rect) Center() (x, y float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Area returns the area of the rectangle
func (r Rect) Area() float64 {
	return r.W * r.H
}

// FlipY converts between top-left and bottom-left origin. It is its own inverse.
func (r Rect) FlipY() Rect {
	return Rect{X: r.X, Y: 1 - r.Y - r.H, W: r.W, H: r.H}
}

// Observation is one scored result of an inference call
type Observation struct {
	Identifier string  `json:"identifier"`
	Confidence float64 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// Detector is the interface for inference backends
type Detector interface {
	// Detect scores one JPEG frame
	Detect(jpeg []byte) ([]Observation, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	LabelsPath       string  // Optional newline-separated class labels (classifier)
	ConfidenceThresh float64 // Minimum confidence kept by the backend
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
	TopK             int     // Classifier: ranked labels returned per frame
}

// DefaultConfig returns production defaults for the YOLO backend
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.25,
		InputWidth:       640,
		InputHeight:      640,
		TopK:             5,
	}
}

// SelectQualifying picks the observation that counts as the target.
// It must match target and exceed threshold. The highest confidence wins;
// ties go to the earliest observation in input order.
func SelectQualifying(obs []Observation, target string, threshold float64) (Observation, bool) {
	best := -1
	for i := range obs {
		if obs[i].Identifier != target || obs[i].Confidence <= threshold {
			continue
		}
		if best < 0 || obs[i].Confidence > obs[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return Observation{}, false
	}
	return obs[best], true
}

// FilterAbove returns the observations whose confidence exceeds threshold,
// ordered by descending confidence. Equal confidences keep input order.
// The input slice is not modified.
func FilterAbove(obs []Observation, threshold float64) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Confidence > threshold {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
