package session

import (
	"context"

	"github.com/teslashibe/go-lookout/pkg/behavior"
	"github.com/teslashibe/go-lookout/pkg/pipeline"
	"github.com/teslashibe/go-lookout/pkg/stability"
)

// Status is a point-in-time snapshot for the dashboard.
type Status struct {
	ID               string          `json:"id"`
	Target           string          `json:"target"`
	Engine           string          `json:"engine"`
	Mode             string          `json:"mode"`
	Detection        string          `json:"detection"`
	Counter          int             `json:"counter"`
	Behavior         string          `json:"behavior"`
	Remaining        int             `json:"remaining"`
	LostPolicy       string          `json:"lost_policy"`
	PermissionDenied bool            `json:"permission_denied"`
	LastError        string          `json:"last_error,omitempty"`
	Dispatcher       pipeline.Stats  `json:"dispatcher"`
	Stability        stability.Stats `json:"stability"`
	Effects          behavior.Stats  `json:"effects"`
}

// Status snapshots the session on the coordination loop.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.loop.Do(ctx, func() {
		st = Status{
			ID:               s.id.String(),
			Target:           s.cfg.Stability.TargetID,
			Engine:           s.engine.Name(),
			Mode:             s.orch.Mode().String(),
			Detection:        s.machine.State().String(),
			Counter:          s.machine.Counter(),
			Behavior:         s.orch.State().String(),
			Remaining:        s.orch.Remaining(),
			LostPolicy:       string(s.cfg.Behavior.LostPolicy),
			PermissionDenied: s.denied,
			Dispatcher:       s.dispatcher.Stats(),
			Stability:        s.machine.Stats(),
			Effects:          s.orch.Stats(),
		}
		if s.lastErr != nil {
			st.LastError = s.lastErr.Error()
		}
	})
	return st, err
}
