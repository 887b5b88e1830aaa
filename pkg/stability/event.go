package stability

import (
	"github.com/teslashibe/go-lookout/pkg/detection"
)

// State is the debounced presence of the target.
type State int

const (
	Searching State = iota
	Locked
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// EventKind identifies a state machine output.
type EventKind int

const (
	TargetAcquired EventKind = iota + 1
	TargetLost
	ObservationsUpdated
	InferenceFailed
	ModelUnavailable
	PermissionDenied
)

func (k EventKind) String() string {
	switch k {
	case TargetAcquired:
		return "target_acquired"
	case TargetLost:
		return "target_lost"
	case ObservationsUpdated:
		return "observations_updated"
	case InferenceFailed:
		return "inference_failed"
	case ModelUnavailable:
		return "model_unavailable"
	case PermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Event is emitted by Machine.Apply.
type Event struct {
	Kind EventKind
	Seq  uint64

	// Target is the qualifying observation for TargetAcquired.
	Target detection.Observation

	// Observations is the display set for ObservationsUpdated, sorted by
	// confidence, highest first.
	Observations []detection.Observation

	// Err is set for InferenceFailed, ModelUnavailable and PermissionDenied.
	Err error
}

// IsTransition reports whether the event changes State.
func (e Event) IsTransition() bool {
	return e.Kind == TargetAcquired || e.Kind == TargetLost
}
