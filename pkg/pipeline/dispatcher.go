// Package pipeline feeds camera frames to an inference engine.
//
// The Dispatcher keeps at most one inference outstanding. Frames that
// arrive while it is busy are dropped, never queued: the reported state has
// to track the world as it is now, and a queue would only add latency.
package pipeline

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/debug"
	"github.com/teslashibe/go-lookout/pkg/inference"
)

// Completion is one finished inference, tagged with the frame it scored.
type Completion struct {
	Seq         uint64
	CapturedAt  time.Time
	CompletedAt time.Time
	inference.Result
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Submitted  uint64 `json:"submitted"`
	Dispatched uint64 `json:"dispatched"`
	Dropped    uint64 `json:"dropped"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	Busy       bool   `json:"busy"`
	Paused     bool   `json:"paused"`
	Disabled   bool   `json:"disabled"`
}

// ErrDisabled is reported once when a fatal engine error stops dispatching.
var ErrDisabled = errors.New("pipeline: dispatcher disabled")

// Dispatcher enforces single-flight inference with a drop-on-busy policy.
type Dispatcher struct {
	engine     inference.Engine
	onComplete func(Completion)
	logger     *slog.Logger

	busy     atomic.Bool
	paused   atomic.Bool
	disabled atomic.Bool
	fatalErr atomic.Value // error

	submitted  atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64

	disableOnce sync.Once
}

// NewDispatcher creates a dispatcher. onComplete runs on the engine's
// completion goroutine, once per dispatched frame, before the dispatcher
// accepts the next frame.
func NewDispatcher(engine inference.Engine, onComplete func(Completion)) *Dispatcher {
	return &Dispatcher{
		engine:     engine,
		onComplete: onComplete,
		logger:     log.For("dispatcher"),
	}
}

// Submit offers a frame. It never blocks and reports whether the frame was
// handed to the engine.
func (d *Dispatcher) Submit(frame inference.Frame) bool {
	d.submitted.Add(1)

	if d.disabled.Load() || d.paused.Load() {
		d.dropped.Add(1)
		return false
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.dropped.Add(1)
		debug.Framef("dispatcher: drop frame %d (busy)", frame.Seq)
		return false
	}

	d.dispatched.Add(1)
	debug.Framef("dispatcher: dispatch frame %d", frame.Seq)

	var fired atomic.Bool
	d.engine.Infer(frame, func(r inference.Result) {
		if !fired.CompareAndSwap(false, true) {
			d.logger.Warn("duplicate completion ignored", "engine", d.engine.Name(), "seq", frame.Seq)
			return
		}
		d.complete(frame, r)
	})
	return true
}

func (d *Dispatcher) complete(frame inference.Frame, r inference.Result) {
	d.completed.Add(1)
	if r.Err != nil {
		d.failed.Add(1)
	}

	if inference.IsFatal(r.Err) {
		d.disable(r.Err)
	}

	if d.onComplete != nil {
		d.onComplete(Completion{
			Seq:         frame.Seq,
			CapturedAt:  frame.Timestamp,
			CompletedAt: time.Now(),
			Result:      r,
		})
	}

	// Released last so the next completion cannot overtake this one.
	d.busy.Store(false)
}

func (d *Dispatcher) disable(err error) {
	d.disableOnce.Do(func() {
		d.fatalErr.Store(err)
		d.disabled.Store(true)
		d.logger.Error("inference disabled", "engine", d.engine.Name(), "err", err)
	})
}

// Pause drops all frames until Resume.
func (d *Dispatcher) Pause() { d.paused.Store(true) }

// Resume re-enables submission after Pause.
func (d *Dispatcher) Resume() { d.paused.Store(false) }

// Disabled reports whether a fatal error stopped the dispatcher, and why.
func (d *Dispatcher) Disabled() (bool, error) {
	if !d.disabled.Load() {
		return false, nil
	}
	err, _ := d.fatalErr.Load().(error)
	if err == nil {
		err = ErrDisabled
	}
	return true, err
}

// Busy reports whether an inference is outstanding.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted:  d.submitted.Load(),
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Completed:  d.completed.Load(),
		Failed:     d.failed.Load(),
		Busy:       d.busy.Load(),
		Paused:     d.paused.Load(),
		Disabled:   d.disabled.Load(),
	}
}
