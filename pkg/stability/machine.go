// Package stability turns jittery per-frame inference results into debounced
// TargetAcquired / TargetLost transitions.
//
// Acquiring is fast: one qualifying observation locks. Releasing is slow: the
// lock survives DetectionThreshold consecutive misses and is dropped on the
// next one. A completion that carries an error, or no data at all, is
// skipped and neither counts as a miss nor resets the counter.
//
// Machine is not safe for concurrent use. It is meant to live on the
// coordination loop, which is its only caller.
package stability

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/debug"
	"github.com/teslashibe/go-lookout/pkg/detection"
	"github.com/teslashibe/go-lookout/pkg/inference"
	"github.com/teslashibe/go-lookout/pkg/pipeline"
)

// Machine is the detection stability state machine.
type Machine struct {
	cfg     Config
	state   State
	counter int
	logger  *slog.Logger

	acquired uint64
	lost     uint64
	skipped  uint64
}

// New creates a machine in the Searching state.
func New(cfg Config) *Machine {
	return &Machine{
		cfg:    cfg,
		state:  Searching,
		logger: log.For("stability"),
	}
}

// Apply consumes one completion and returns the events it produced, in the
// order subscribers must see them. ObservationsUpdated always precedes a
// transition from the same completion.
func (m *Machine) Apply(c pipeline.Completion) []Event {
	if c.Err != nil {
		return m.skip(c)
	}
	if c.Observations == nil {
		return m.skip(pipeline.Completion{Seq: c.Seq, Result: inference.Result{Err: inference.ErrNoResults}})
	}

	events := []Event{{
		Kind:         ObservationsUpdated,
		Seq:          c.Seq,
		Observations: detection.FilterAbove(c.Observations, m.cfg.DisplayThreshold),
	}}

	target, ok := detection.SelectQualifying(c.Observations, m.cfg.TargetID, m.cfg.AcquireThreshold)
	if ok {
		m.counter = 0
		if m.state == Searching {
			m.state = Locked
			m.acquired++
			m.logger.Info("target acquired", "target", target.Identifier, "confidence", target.Confidence, "seq", c.Seq)
			events = append(events, Event{Kind: TargetAcquired, Seq: c.Seq, Target: target})
		}
		return events
	}

	m.counter++
	debug.Framef("stability: miss %d/%d (seq %d, %s)", m.counter, m.cfg.DetectionThreshold, c.Seq, m.state)
	if m.counter > m.cfg.DetectionThreshold && m.state == Locked {
		m.state = Searching
		m.lost++
		m.logger.Info("target lost", "misses", m.counter, "seq", c.Seq)
		events = append(events, Event{Kind: TargetLost, Seq: c.Seq})
	}
	return events
}

func (m *Machine) skip(c pipeline.Completion) []Event {
	m.skipped++
	switch {
	case inference.IsFatal(c.Err):
		m.logger.Error("model unavailable", "seq", c.Seq, "err", c.Err)
		return []Event{{Kind: ModelUnavailable, Seq: c.Seq, Err: c.Err}}
	case errors.Is(c.Err, inference.ErrPermissionDenied):
		m.logger.Warn("frame source denied", "seq", c.Seq, "err", c.Err)
		return []Event{{Kind: PermissionDenied, Seq: c.Seq, Err: c.Err}}
	case errors.Is(c.Err, inference.ErrNoResults):
		m.logger.Debug("no data", "seq", c.Seq)
	default:
		m.logger.Warn("inference failed", "seq", c.Seq, "err", c.Err)
	}
	return []Event{{Kind: InferenceFailed, Seq: c.Seq, Err: c.Err}}
}

// Reset returns to Searching with a zero counter without emitting events.
func (m *Machine) Reset() {
	m.state = Searching
	m.counter = 0
}

// State returns the current detection state.
func (m *Machine) State() State { return m.state }

// Counter returns the consecutive miss count.
func (m *Machine) Counter() int { return m.counter }

// Stats counts transitions and skipped completions.
type Stats struct {
	Acquired uint64 `json:"acquired"`
	Lost     uint64 `json:"lost"`
	Skipped  uint64 `json:"skipped"`
}

// Stats returns transition counters.
func (m *Machine) Stats() Stats {
	return Stats{Acquired: m.acquired, Lost: m.lost, Skipped: m.skipped}
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config { return m.cfg }
