// Package behavior sequences the secondary effects (ambient sound, the
// countdown, mode transitions) from debounced detection transitions and
// its own timers, never from raw per-frame data.
//
// An Orchestrator is owned by the coordination loop. Every method must be
// called from it, and timer callbacks are posted back onto it before they
// touch any state.
package behavior

import (
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/debug"
	"github.com/teslashibe/go-lookout/pkg/stability"
)

// ErrWrongMode is returned when an operation is not valid in the active mode.
var ErrWrongMode = errors.New("behavior: operation not valid in current mode")

// Mode is the active top-level mode. Only one is active at a time.
type Mode int

const (
	ModeNone Mode = iota
	ModeCountdown
	ModeReactive
)

func (m Mode) String() string {
	switch m {
	case ModeCountdown:
		return "countdown"
	case ModeReactive:
		return "reactive"
	default:
		return "none"
	}
}

// State tracks which secondary effect is engaged.
type State int

const (
	Idle State = iota
	CountingDown
	SoundLoopActive
	GraceWaiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CountingDown:
		return "counting_down"
	case SoundLoopActive:
		return "sound_loop_active"
	case GraceWaiting:
		return "grace_waiting"
	default:
		return "unknown"
	}
}

type timerKind int

const (
	timerCountdown timerKind = iota
	timerGrace
	timerConfirm
	numTimers
)

func (k timerKind) String() string {
	return [...]string{"countdown", "grace", "confirm"}[k]
}

type timerSlot struct {
	timer *clock.Timer
	gen   uint64
}

// Stats counts paired effects so tests and the dashboard can check that
// every start has exactly one matching stop.
type Stats struct {
	CountdownsStarted   int `json:"countdowns_started"`
	CountdownsCancelled int `json:"countdowns_cancelled"`
	GracesStarted       int `json:"graces_started"`
	GracesCancelled     int `json:"graces_cancelled"`
	LoopsStarted        int `json:"loops_started"`
	LoopsStopped        int `json:"loops_stopped"`
	Transitions         int `json:"transitions"`
}

// Orchestrator is the behavior state machine.
type Orchestrator struct {
	cfg    Config
	clk    clock.Clock
	post   func(func())
	collab Collaborators
	logger *slog.Logger

	mode       Mode
	state      State
	remaining  int
	looping    bool
	confirming bool

	timers [numTimers]timerSlot
	gen    uint64

	stats Stats
}

// New creates an orchestrator with no active mode. post must run the given
// function on the coordination loop; it is used to marshal timer fires.
func New(cfg Config, clk clock.Clock, post func(func()), collab Collaborators) *Orchestrator {
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		cfg:    cfg,
		clk:    clk,
		post:   post,
		collab: collab.withDefaults(),
		logger: log.For("behavior"),
	}
}

// EnterCountdownMode tears down the current mode and activates countdown mode.
func (o *Orchestrator) EnterCountdownMode() {
	o.teardown()
	o.mode = ModeCountdown
	o.logger.Info("mode entered", "mode", o.mode)
}

// EnterReactiveMode tears down the current mode and activates reactive mode.
func (o *Orchestrator) EnterReactiveMode() {
	o.teardown()
	o.mode = ModeReactive
	o.logger.Info("mode entered", "mode", o.mode, "policy", o.cfg.LostPolicy)
}

// Teardown cancels all timers, stops any sound and leaves no mode active.
func (o *Orchestrator) Teardown() {
	o.teardown()
	o.mode = ModeNone
}

func (o *Orchestrator) teardown() {
	if o.cancel(timerCountdown) {
		o.stats.CountdownsCancelled++
	}
	if o.cancel(timerGrace) {
		o.stats.GracesCancelled++
	}
	o.cancel(timerConfirm)

	if o.state == CountingDown {
		o.collab.Countdown.HideCountdown()
	}
	o.stopLoop()
	o.state = Idle
	o.remaining = 0
	o.confirming = false
}

// StartCountdown starts the visible countdown from the full duration. A
// running countdown is cancelled and restarted.
func (o *Orchestrator) StartCountdown() error {
	if o.mode != ModeCountdown {
		return ErrWrongMode
	}
	if o.cancel(timerCountdown) {
		o.stats.CountdownsCancelled++
		o.logger.Debug("countdown restarted")
	}
	o.stats.CountdownsStarted++
	o.state = CountingDown
	o.remaining = o.cfg.CountdownUnits
	o.schedule(timerCountdown, o.cfg.units(1), o.tick)
	o.collab.Countdown.ShowCountdown(o.remaining)
	return nil
}

func (o *Orchestrator) tick() {
	o.remaining--
	if o.remaining > 0 {
		// next tick is armed before collaborators run
		o.schedule(timerCountdown, o.cfg.units(1), o.tick)
		o.collab.Countdown.ShowCountdown(o.remaining)
		if o.cfg.TickSound != "" {
			o.collab.Sound.PlayOnce(o.cfg.TickSound)
		}
		return
	}

	// the last step ticks too
	if o.cfg.TickSound != "" {
		o.collab.Sound.PlayOnce(o.cfg.TickSound)
	}
	o.collab.Countdown.HideCountdown()
	o.state = Idle
	o.transition(ModeCountdown)
}

// HandleEvent reacts to a stability event. Only reactive mode consumes
// events; other modes ignore them.
func (o *Orchestrator) HandleEvent(ev stability.Event) {
	if o.mode != ModeReactive {
		return
	}
	switch ev.Kind {
	case stability.TargetAcquired:
		o.onAcquired()
	case stability.TargetLost:
		o.onLost()
	}
}

func (o *Orchestrator) onAcquired() {
	if o.confirming {
		o.logger.Debug("acquisition ignored while confirming exit")
		return
	}
	if o.cancel(timerGrace) {
		o.stats.GracesCancelled++
		o.logger.Info("grace cancelled, target back")
	}
	if !o.looping {
		o.startLoop()
	}
	o.state = SoundLoopActive
}

func (o *Orchestrator) onLost() {
	switch o.cfg.LostPolicy {
	case LostPolicyGrace:
		if o.state != SoundLoopActive {
			return
		}
		o.stats.GracesStarted++
		o.state = GraceWaiting
		o.schedule(timerGrace, o.cfg.units(o.cfg.GraceUnits), o.graceExpired)
		o.logger.Info("grace started", "units", o.cfg.GraceUnits)

	default:
		if o.state != SoundLoopActive {
			return
		}
		o.stopLoop()
		o.state = Idle
		o.transition(ModeReactive)
	}
}

func (o *Orchestrator) graceExpired() {
	o.stopLoop()
	if o.cfg.ConfirmSound != "" {
		o.collab.Sound.PlayOnce(o.cfg.ConfirmSound)
	}
	// the loop is off, so the exit is no longer a grace period
	o.state = Idle
	o.confirming = true
	o.schedule(timerConfirm, o.cfg.units(o.cfg.ConfirmUnits), o.confirmDone)
}

func (o *Orchestrator) confirmDone() {
	o.confirming = false
	o.state = Idle
	o.transition(ModeReactive)
}

func (o *Orchestrator) transition(from Mode) {
	o.stats.Transitions++
	o.logger.Info("mode transition", "from", from)
	o.collab.Navigator.TriggerModeTransition(from)
}

func (o *Orchestrator) startLoop() {
	o.looping = true
	o.stats.LoopsStarted++
	o.collab.Sound.StartLoop(o.cfg.LoopSound)
}

func (o *Orchestrator) stopLoop() {
	if !o.looping {
		return
	}
	o.looping = false
	o.stats.LoopsStopped++
	o.collab.Sound.StopLoop()
}

// schedule arms kind, replacing any previous timer of that kind. The fire
// is posted to the loop and dropped there if the slot has since moved on.
func (o *Orchestrator) schedule(kind timerKind, d time.Duration, fn func()) {
	o.cancel(kind)
	o.gen++
	gen := o.gen
	debug.Logf("behavior: arm %s timer for %v (gen %d)", kind, d, gen)
	o.timers[kind] = timerSlot{
		gen: gen,
		timer: o.clk.AfterFunc(d, func() {
			o.post(func() {
				slot := &o.timers[kind]
				if slot.timer == nil || slot.gen != gen {
					return
				}
				slot.timer = nil
				fn()
			})
		}),
	}
}

// cancel disarms kind and reports whether it was armed.
func (o *Orchestrator) cancel(kind timerKind) bool {
	slot := &o.timers[kind]
	if slot.timer == nil {
		return false
	}
	slot.timer.Stop()
	o.timers[kind] = timerSlot{}
	return true
}

// Mode returns the active mode.
func (o *Orchestrator) Mode() Mode { return o.mode }

// State returns the behavior state.
func (o *Orchestrator) State() State { return o.state }

// Remaining returns the countdown value, 0 when not counting.
func (o *Orchestrator) Remaining() int { return o.remaining }

// Stats returns the pairing counters.
func (o *Orchestrator) Stats() Stats { return o.stats }

// Armed reports how many timers are outstanding.
func (o *Orchestrator) Armed() int {
	n := 0
	for _, slot := range o.timers {
		if slot.timer != nil {
			n++
		}
	}
	return n
}
