package detection

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// ImageNet normalization used by most exported classifiers.
var (
	classifierMean = [3]float32{0.485, 0.456, 0.406}
	classifierStd  = [3]float32{0.229, 0.224, 0.225}
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime loads the onnxruntime shared library once per process.
// An empty libPath uses the library's default search path.
func InitRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("%w: onnxruntime: %v", ErrModelLoad, err)
		}
	})
	return ortErr
}

// ClassifierConfig configures an ONNX image classifier
type ClassifierConfig struct {
	Config
	InputName   string
	OutputName  string
	LibraryPath string // onnxruntime shared library
}

// DefaultClassifierConfig returns defaults for a 224x224 ImageNet-style model
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Config: Config{
			ModelPath:        "models/classifier.onnx",
			LabelsPath:       "models/classifier.labels",
			ConfidenceThresh: 0.01,
			InputWidth:       224,
			InputHeight:      224,
			TopK:             5,
		},
		InputName:  "input",
		OutputName: "output",
	}
}

// ONNXClassifier scores the whole frame against a fixed label set.
// Every observation carries the full-frame box since classifiers do not
// localize; results are ranked by confidence.
type ONNXClassifier struct {
	cfg     ClassifierConfig
	labels  []string
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

// NewONNXClassifier loads labels and builds a session with preallocated tensors.
func NewONNXClassifier(cfg ClassifierConfig) (*ONNXClassifier, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}
	if err := InitRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth))
	outputShape := ort.NewShape(1, int64(len(labels)))

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("%w: input tensor: %v", ErrModelLoad, err)
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("%w: output tensor: %v", ErrModelLoad, err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: session: %v", ErrModelLoad, err)
	}

	return &ONNXClassifier{
		cfg:     cfg,
		labels:  labels,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Detect classifies one JPEG frame
func (c *ONNXClassifier) Detect(jpeg []byte) ([]Observation, error) {
	img, err := imaging.Decode(bytes.NewReader(jpeg), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	// Center crop to the model aspect, matching the usual scaleFill/centerCrop preprocessing.
	fitted := imaging.Fill(img, c.cfg.InputWidth, c.cfg.InputHeight, imaging.Center, imaging.Linear)

	c.mu.Lock()
	defer c.mu.Unlock()

	fillTensor(c.input.GetData(), fitted.Pix, fitted.Stride, c.cfg.InputWidth, c.cfg.InputHeight)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("classifier run: %w", err)
	}

	probs := Softmax(c.output.GetData())
	return RankLabels(probs, c.labels, c.cfg.TopK, c.cfg.ConfidenceThresh), nil
}

// Close releases the session and tensors
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if c.session != nil {
		firstErr = c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		c.input.Destroy()
		c.input = nil
	}
	if c.output != nil {
		c.output.Destroy()
		c.output = nil
	}
	return firstErr
}

// fillTensor writes NRGBA pixels into an NCHW float buffer with ImageNet normalization.
func fillTensor(dst []float32, pix []uint8, stride, w, h int) {
	plane := w * h
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			p := row[x*4:]
			for ch := 0; ch < 3; ch++ {
				v := float32(p[ch]) / 255.0
				dst[ch*plane+i] = (v - classifierMean[ch]) / classifierStd[ch]
			}
		}
	}
}

// Softmax converts logits to probabilities. Inputs that already sum to 1
// come back unchanged up to rounding.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxV {
			maxV = float64(v)
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// RankLabels turns per-class probabilities into at most topK observations
// above minConf, highest first. Labels beyond the list are named class_<n>.
func RankLabels(probs []float64, labels []string, topK int, minConf float64) []Observation {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})

	if topK <= 0 || topK > len(idx) {
		topK = len(idx)
	}

	full := Rect{X: 0, Y: 0, W: 1, H: 1}
	obs := make([]Observation, 0, topK)
	for _, i := range idx[:topK] {
		if probs[i] < minConf {
			break
		}
		name := fmt.Sprintf("class_%d", i)
		if i < len(labels) {
			name = labels[i]
		}
		obs = append(obs, Observation{Identifier: name, Confidence: probs[i], Box: full})
	}
	return obs
}

// LoadLabels reads one label per line, skipping blank lines.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels in %s", ErrModelLoad, path)
	}
	return labels, nil
}
