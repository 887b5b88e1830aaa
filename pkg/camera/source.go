package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/inference"
)

// ErrDeviceUnavailable means the capture device could not be opened. The
// pipeline treats it like a denied camera permission.
var ErrDeviceUnavailable = fmt.Errorf("camera: device unavailable: %w", inference.ErrPermissionDenied)

// Grabber produces encoded frames from one opened device.
type Grabber interface {
	// Grab returns the next frame as JPEG.
	Grab() ([]byte, error)
	Close() error
}

// Opener opens a device for the given facing.
type Opener func(device string, facing Facing, cfg Config) (Grabber, error)

// Source reads frames at the configured rate and offers each to a handler.
// The handler must not block; the dispatcher it feeds drops on busy.
type Source struct {
	logger  *slog.Logger
	open    Opener
	handler func(inference.Frame) bool

	mu     sync.Mutex
	cfg    Config
	facing Facing

	reopen chan struct{}
	seq    atomic.Uint64

	offered atomic.Uint64
	grabbed atomic.Uint64
}

// NewSource creates a source starting on the back camera.
func NewSource(cfg Config, handler func(inference.Frame) bool) *Source {
	return &Source{
		logger:  log.For("camera"),
		open:    OpenGoCV,
		handler: handler,
		cfg:     cfg,
		facing:  FacingBack,
		reopen:  make(chan struct{}, 1),
	}
}

// WithOpener replaces the device opener.
func (s *Source) WithOpener(open Opener) *Source {
	s.open = open
	return s
}

// SetFacing switches cameras. It never blocks; the switch happens on the
// capture goroutine before the next frame.
func (s *Source) SetFacing(f Facing) {
	s.mu.Lock()
	changed := s.facing != f
	s.facing = f
	s.mu.Unlock()
	if changed {
		s.requestReopen()
	}
}

// Facing returns the active facing.
func (s *Source) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// ApplyConfig installs a new capture configuration. It has the
// Manager.OnConfigChange signature.
func (s *Source) ApplyConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera: invalid config: %v", errs)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.requestReopen()
	return nil
}

func (s *Source) requestReopen() {
	select {
	case s.reopen <- struct{}{}:
	default:
	}
}

func (s *Source) snapshot() (Config, Facing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.facing
}

// Run captures until ctx is cancelled. A device that cannot be opened
// returns an error wrapping ErrDeviceUnavailable.
func (s *Source) Run(ctx context.Context) error {
	for {
		cfg, facing := s.snapshot()
		device := cfg.Device(facing)

		g, err := s.open(device, facing, cfg)
		if err != nil {
			return fmt.Errorf("%w: %s (%s): %v", ErrDeviceUnavailable, device, facing, err)
		}
		s.logger.Info("capture started", "device", device, "facing", facing, "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)

		err = s.capture(ctx, g, cfg)
		g.Close()

		if errors.Is(err, errReopen) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

var errReopen = errors.New("camera: reopen")

func (s *Source) capture(ctx context.Context, g Grabber, cfg Config) error {
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Framerate))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.reopen:
			return errReopen
		case <-ticker.C:
		}

		data, err := g.Grab()
		if err != nil {
			failures++
			if failures >= maxGrabFailures {
				return fmt.Errorf("camera: %d consecutive read failures: %w", failures, err)
			}
			continue
		}
		failures = 0
		s.grabbed.Add(1)

		frame := inference.Frame{
			Seq:       s.seq.Add(1),
			Data:      data,
			Timestamp: time.Now(),
		}
		if s.handler != nil && s.handler(frame) {
			s.offered.Add(1)
		}
	}
}

const maxGrabFailures = 30

// Stats reports how many frames were grabbed and how many the handler accepted.
func (s *Source) Stats() (grabbed, accepted uint64) {
	return s.grabbed.Load(), s.offered.Load()
}

// gocvGrabber reads from an OpenCV VideoCapture.
type gocvGrabber struct {
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	params []int
	mirror bool
}

// OpenGoCV opens device with OpenCV and encodes frames as JPEG.
func OpenGoCV(device string, facing Facing, cfg Config) (Grabber, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %s did not open", device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &gocvGrabber{
		cap:    vc,
		mat:    gocv.NewMat(),
		params: []int{gocv.IMWriteJpegQuality, cfg.Quality},
		mirror: cfg.Mirror && facing == FacingFront,
	}, nil
}

func (g *gocvGrabber) Grab() ([]byte, error) {
	if ok := g.cap.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, errors.New("empty frame")
	}
	if g.mirror {
		gocv.Flip(g.mat, &g.mat, 1)
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, g.mat, g.params)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	// the native buffer is freed on Close
	src := buf.GetBytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (g *gocvGrabber) Close() error {
	g.mat.Close()
	return g.cap.Close()
}
