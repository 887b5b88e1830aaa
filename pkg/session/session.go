// Package session wires the detection pipeline end to end: frames go to the
// dispatcher, completions are marshaled onto the coordination loop, and the
// stability machine, presenter and behavior orchestrator run there.
//
// The session also owns the mode flow: countdown mode runs until the target
// is acquired and the countdown elapses, then reactive mode takes over until
// it exits, which returns to countdown mode.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/behavior"
	"github.com/teslashibe/go-lookout/pkg/coord"
	"github.com/teslashibe/go-lookout/pkg/inference"
	"github.com/teslashibe/go-lookout/pkg/pipeline"
	"github.com/teslashibe/go-lookout/pkg/present"
	"github.com/teslashibe/go-lookout/pkg/stability"
)

// Collaborators are the outward effects. Nil fields are no-ops.
type Collaborators struct {
	Sound     behavior.Sound
	Countdown behavior.Countdown
	Overlay   present.OverlaySink
}

// Session is the detection-reactive controller.
type Session struct {
	id     uuid.UUID
	cfg    Config
	clk    clock.Clock
	logger *slog.Logger

	engine     inference.Engine
	loop       *coord.Loop
	dispatcher *pipeline.Dispatcher

	// loop-owned
	machine   *stability.Machine
	orch      *behavior.Orchestrator
	presenter *present.Presenter
	collab    Collaborators
	lastErr   error
	denied    bool

	mu       sync.RWMutex
	handlers []func(Event)

	nextSeq atomic.Uint64
	started atomic.Bool
}

// New builds a session around engine. A nil engine fails with
// inference.ErrModelUnavailable so no frame is ever accepted without a model.
func New(cfg Config, engine inference.Engine, collab Collaborators, opts ...Option) (*Session, error) {
	if engine == nil {
		return nil, fmt.Errorf("session: %w", inference.ErrModelUnavailable)
	}

	s := &Session{
		id:     uuid.New(),
		cfg:    cfg,
		engine: engine,
		collab: collab,
		logger: log.For("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.clk == nil {
		s.clk = clock.New()
	}

	s.loop = coord.New(s.cfg.LoopBuffer)
	s.machine = stability.New(s.cfg.Stability)
	s.presenter = present.NewPresenter(s.cfg.View, collab.Overlay)
	s.orch = behavior.New(s.cfg.Behavior, s.clk, func(fn func()) { s.loop.Post(fn) }, behavior.Collaborators{
		Sound:     collab.Sound,
		Countdown: countdownTap{s},
		Navigator: navigator{s},
	})
	s.dispatcher = pipeline.NewDispatcher(engine, func(c pipeline.Completion) {
		// Blocks while the loop is backed up, which holds the dispatcher
		// busy and sheds frames upstream instead of queueing completions.
		s.loop.Post(func() { s.handleCompletion(c) })
	})

	s.logger = s.logger.With("session", s.id.String())
	return s, nil
}

// Open builds the configured model engine and a session around it.
func Open(cfg Config, collab Collaborators, engineOpts []inference.Option, opts ...Option) (*Session, error) {
	engine, err := inference.Open(engineOpts...)
	if err != nil {
		return nil, err
	}
	s, err := New(cfg, engine, collab, opts...)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return s, nil
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Subscribe registers fn for every event. Handlers run on the coordination
// loop in registration order and must not block.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.handlers = append(s.handlers, fn)
	s.mu.Unlock()
}

// OnFrame hands a frame to the dispatcher. It never blocks; frames that
// arrive while an inference is outstanding are dropped.
func (s *Session) OnFrame(frame inference.Frame) bool {
	if frame.Seq == 0 {
		frame.Seq = s.nextSeq.Add(1)
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = s.clk.Now()
	}
	return s.dispatcher.Submit(frame)
}

// Run drives the coordination loop until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}

	s.loop.Post(func() { s.enterMode(s.cfg.StartMode) })
	s.logger.Info("session started", "target", s.cfg.Stability.TargetID, "engine", s.engine.Name(), "start_mode", s.cfg.StartMode)

	err := s.loop.Run(ctx)

	// the loop has exited, so this goroutine is now the only owner
	s.orch.Teardown()
	s.logger.Info("session stopped", "stats", s.dispatcher.Stats())

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the engine.
func (s *Session) Close() error {
	return s.engine.Close()
}

// ReportPermission records the frame source's permission state. A denial
// is surfaced as an event and idles the pipeline until granted again.
func (s *Session) ReportPermission(granted bool) {
	s.loop.Post(func() {
		if granted {
			s.grant()
			return
		}
		s.deny(Event{Kind: EventPermissionDenied, Error: inference.ErrPermissionDenied.Error()}, inference.ErrPermissionDenied)
	})
}

func (s *Session) deny(ev Event, err error) {
	s.denied = true
	s.lastErr = err
	s.dispatcher.Pause()
	s.logger.Warn("camera permission denied", "err", err)
	s.emit(ev)
}

func (s *Session) grant() {
	if !s.denied {
		return
	}
	s.denied = false
	s.lastErr = nil
	// the countdown resumes scoring itself when it hands over to reactive mode
	if s.orch.State() != behavior.CountingDown {
		s.dispatcher.Resume()
	}
	s.logger.Info("camera permission granted")
}

func (s *Session) handleCompletion(c pipeline.Completion) {
	for _, ev := range s.machine.Apply(c) {
		out := fromStability(ev, s.clk.Now())

		switch ev.Kind {
		case stability.ObservationsUpdated:
			overlay := s.presenter.Update(ev.Seq, ev.Observations)
			out.Overlay = &overlay
			s.emit(out)

		case stability.TargetAcquired:
			s.emit(out)
			s.onAcquired(ev)

		case stability.TargetLost:
			s.emit(out)
			s.orch.HandleEvent(ev)

		case stability.InferenceFailed, stability.ModelUnavailable:
			s.lastErr = ev.Err
			s.emit(out)

		case stability.PermissionDenied:
			s.deny(out, ev.Err)
		}
	}
}

func (s *Session) onAcquired(ev stability.Event) {
	switch s.orch.Mode() {
	case behavior.ModeCountdown:
		if s.orch.State() == behavior.CountingDown {
			return
		}
		// frames are not scored while the countdown runs
		s.dispatcher.Pause()
		if err := s.orch.StartCountdown(); err != nil {
			s.logger.Error("start countdown", "err", err)
			s.dispatcher.Resume()
		}
	case behavior.ModeReactive:
		s.orch.HandleEvent(ev)
	}
}

func (s *Session) enterMode(m behavior.Mode) {
	s.machine.Reset()
	switch m {
	case behavior.ModeReactive:
		s.orch.EnterReactiveMode()
	default:
		s.orch.EnterCountdownMode()
	}
	if !s.denied {
		s.dispatcher.Resume()
	}
	s.emit(Event{Kind: EventModeChanged, Mode: s.orch.Mode().String()})
}

func (s *Session) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = s.clk.Now()
	}
	s.mu.RLock()
	handlers := s.handlers
	s.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// navigator implements behavior.Navigator. The orchestrator calls it from
// inside its own methods, so the mode switch is deferred until that call
// returns.
type navigator struct{ s *Session }

func (n navigator) TriggerModeTransition(from behavior.Mode) {
	next := behavior.ModeCountdown
	if from == behavior.ModeCountdown {
		next = behavior.ModeReactive
	}
	n.s.loop.Defer(func() { n.s.enterMode(next) })
}

// countdownTap publishes countdown ticks and forwards to the real display.
type countdownTap struct{ s *Session }

func (c countdownTap) ShowCountdown(remaining int) {
	c.s.emit(Event{Kind: EventCountdownTick, Remaining: remaining})
	if c.s.collab.Countdown != nil {
		c.s.collab.Countdown.ShowCountdown(remaining)
	}
}

func (c countdownTap) HideCountdown() {
	if c.s.collab.Countdown != nil {
		c.s.collab.Countdown.HideCountdown()
	}
}
