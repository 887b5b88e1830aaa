package session

import (
	"time"

	"github.com/teslashibe/go-lookout/pkg/detection"
	"github.com/teslashibe/go-lookout/pkg/present"
	"github.com/teslashibe/go-lookout/pkg/stability"
)

// EventKind names a session event on the wire.
type EventKind string

const (
	EventTargetAcquired      EventKind = "target_acquired"
	EventTargetLost          EventKind = "target_lost"
	EventObservationsUpdated EventKind = "observations_updated"
	EventInferenceFailed     EventKind = "inference_failed"
	EventModelUnavailable    EventKind = "model_unavailable"
	EventCountdownTick       EventKind = "countdown_tick"
	EventModeChanged         EventKind = "mode_changed"
	EventPermissionDenied    EventKind = "permission_denied"
)

// Event is published to subscribers on the coordination loop.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`
	Seq  uint64    `json:"seq,omitempty"`

	Target       *detection.Observation  `json:"target,omitempty"`
	Observations []detection.Observation `json:"observations,omitempty"`
	Overlay      *present.Overlay        `json:"overlay,omitempty"`

	Remaining int    `json:"remaining,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Error     string `json:"error,omitempty"`
}

func fromStability(ev stability.Event, now time.Time) Event {
	out := Event{Time: now, Seq: ev.Seq}
	switch ev.Kind {
	case stability.TargetAcquired:
		out.Kind = EventTargetAcquired
		target := ev.Target
		out.Target = &target
	case stability.TargetLost:
		out.Kind = EventTargetLost
	case stability.ObservationsUpdated:
		out.Kind = EventObservationsUpdated
		out.Observations = ev.Observations
	case stability.InferenceFailed:
		out.Kind = EventInferenceFailed
	case stability.ModelUnavailable:
		out.Kind = EventModelUnavailable
	case stability.PermissionDenied:
		out.Kind = EventPermissionDenied
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}
