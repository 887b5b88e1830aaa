// Package present converts detection output into view-space overlays.
package present

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/teslashibe/go-lookout/pkg/detection"
)

// Size is a view size in points or pixels.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ViewRect is a top-left-origin rectangle in view coordinates.
type ViewRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToViewRect maps a normalized bottom-left-origin box into view space:
// y' = 1 - y - h, then everything is scaled by view.
func ToViewRect(box detection.Rect, view Size) ViewRect {
	return ViewRect{
		X:      box.X * view.Width,
		Y:      (1 - box.Y - box.H) * view.Height,
		Width:  box.W * view.Width,
		Height: box.H * view.Height,
	}
}

// MaxLabels is how many recognized entries the label list shows.
const MaxLabels = 3

// NoObjectsLabel is shown when nothing clears the display threshold.
const NoObjectsLabel = "No objects recognized"

// Overlay is one complete replacement of the drawn detection layer.
type Overlay struct {
	ID     uuid.UUID  `json:"id"`
	Rects  []ViewRect `json:"rects"`
	Labels []string   `json:"labels"`
	Seq    uint64     `json:"seq"`
}

// OverlaySink draws overlays. Each call replaces the previous overlay.
type OverlaySink interface {
	PresentOverlay(o Overlay)
}

// SinkFunc adapts a function to OverlaySink.
type SinkFunc func(Overlay)

// PresentOverlay calls f.
func (f SinkFunc) PresentOverlay(o Overlay) { f(o) }

// Presenter builds overlays for a fixed view size.
type Presenter struct {
	view Size
	sink OverlaySink
	last uuid.UUID
}

// NewPresenter creates a presenter that forwards to sink.
func NewPresenter(view Size, sink OverlaySink) *Presenter {
	return &Presenter{view: view, sink: sink}
}

// SetView changes the view size used for subsequent overlays.
func (p *Presenter) SetView(view Size) { p.view = view }

// Update builds a fresh overlay for obs and hands it to the sink.
// obs is expected to be the display set, highest confidence first.
func (p *Presenter) Update(seq uint64, obs []detection.Observation) Overlay {
	o := Overlay{
		ID:     uuid.New(),
		Rects:  make([]ViewRect, 0, len(obs)),
		Labels: Labels(obs),
		Seq:    seq,
	}
	for _, ob := range obs {
		o.Rects = append(o.Rects, ToViewRect(ob.Box, p.view))
	}
	p.last = o.ID
	if p.sink != nil {
		p.sink.PresentOverlay(o)
	}
	return o
}

// Last returns the id of the most recent overlay.
func (p *Presenter) Last() uuid.UUID { return p.last }

// Labels formats up to MaxLabels entries as "<id> (<pct>%)".
func Labels(obs []detection.Observation) []string {
	if len(obs) == 0 {
		return []string{NoObjectsLabel}
	}
	n := len(obs)
	if n > MaxLabels {
		n = MaxLabels
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("%s (%d%%)", obs[i].Identifier, int(math.Round(obs[i].Confidence*100)))
	}
	return out
}
