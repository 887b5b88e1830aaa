package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-lookout/pkg/debug"
	"gocv.io/x/gocv"
)

// FaceIdentifier is the identifier YuNet assigns to every observation.
const FaceIdentifier = "face"

// YuNetDetector uses OpenCV's FaceDetectorYN. It reports faces only, which
// makes it the cheap backend when the target is a person's face.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex
}

// DefaultYuNetConfig returns defaults for the YuNet face model
func DefaultYuNetConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// NewYuNet creates a YuNet face detector
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the JPEG image
func (d *YuNetDetector) Detect(jpeg []byte) ([]Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyImage
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	// Row layout: 0-3 box in pixels, 4-13 landmarks, 14 score.
	obs := make([]Observation, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		topLeft := Rect{
			X: float64(faces.GetFloatAt(r, 0)) / imgW,
			Y: float64(faces.GetFloatAt(r, 1)) / imgH,
			W: float64(faces.GetFloatAt(r, 2)) / imgW,
			H: float64(faces.GetFloatAt(r, 3)) / imgH,
		}
		obs = append(obs, Observation{
			Identifier: FaceIdentifier,
			Confidence: float64(faces.GetFloatAt(r, 14)),
			Box:        topLeft.FlipY(),
		})
	}

	if len(obs) > 0 {
		debug.Framef("yunet: %d face(s)", len(obs))
	}
	return obs, nil
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
