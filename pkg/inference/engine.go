package inference

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/debug"
	"github.com/teslashibe/go-lookout/pkg/detection"
)

// DetectorEngine runs a synchronous Detector on its own goroutine per call.
type DetectorEngine struct {
	name string
	det  detection.Detector
	cfg  Config

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewEngine wraps det. A nil detector yields ErrModelUnavailable so the
// caller learns about a missing model before any frame is accepted.
func NewEngine(det detection.Detector, opts ...Option) (*DetectorEngine, error) {
	cfg := ApplyOptions(DefaultConfig(), opts...)
	if det == nil {
		return nil, fmt.Errorf("%w: no detector", ErrModelUnavailable)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.For("inference")
	}
	return &DetectorEngine{
		name: string(cfg.Kind),
		det:  det,
		cfg:  cfg,
	}, nil
}

// Open builds the configured detector and wraps it in an engine.
func Open(opts ...Option) (*DetectorEngine, error) {
	cfg := ApplyOptions(DefaultConfig(), opts...)
	det, err := OpenDetector(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(det, opts...)
}

// Name identifies the engine
func (e *DetectorEngine) Name() string {
	return e.name
}

// Infer scores frame on a new goroutine and calls done exactly once.
func (e *DetectorEngine) Infer(frame Frame, done Completion) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		go done(Result{Err: WrapError(e.name, frame.Seq, ErrEngineClosed)})
		return
	}
	e.wg.Add(1)
	e.mu.RUnlock()

	go func() {
		defer e.wg.Done()
		done(e.run(frame))
	}()
}

func (e *DetectorEngine) run(frame Frame) Result {
	start := time.Now()
	obs, err := e.det.Detect(frame.Data)
	latency := time.Since(start)

	if e.cfg.SlowThreshold > 0 && latency > e.cfg.SlowThreshold {
		e.cfg.Logger.Warn("slow inference", "seq", frame.Seq, "latency", latency)
	}

	switch {
	case err != nil && errors.Is(err, detection.ErrModelLoad):
		return Result{Err: WrapError(e.name, frame.Seq, fmt.Errorf("%w: %v", ErrModelUnavailable, err)), Latency: latency}
	case err != nil:
		return Result{Err: WrapError(e.name, frame.Seq, fmt.Errorf("%w: %v", ErrInferenceFailed, err)), Latency: latency}
	case obs == nil:
		return Result{Err: WrapError(e.name, frame.Seq, ErrNoResults), Latency: latency}
	}

	debug.Framef("inference: frame %d -> %d observation(s) in %v", frame.Seq, len(obs), latency)
	return Result{Observations: obs, Latency: latency}
}

// Close waits for in-flight calls and releases the detector.
func (e *DetectorEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	return e.det.Close()
}
