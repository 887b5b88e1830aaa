package present

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/teslashibe/go-lookout/pkg/detection"
)

func TestToViewRect(t *testing.T) {
	view := Size{Width: 400, Height: 800}

	tests := []struct {
		name string
		box  detection.Rect
		want ViewRect
	}{
		{"full frame", detection.Rect{X: 0, Y: 0, W: 1, H: 1}, ViewRect{0, 0, 400, 800}},
		{"bottom left quarter", detection.Rect{X: 0, Y: 0, W: 0.5, H: 0.5}, ViewRect{0, 400, 200, 400}},
		{"top right quarter", detection.Rect{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}, ViewRect{200, 0, 200, 400}},
		{"small box", detection.Rect{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}, ViewRect{40, 320, 120, 320}},
		{"zero view", detection.Rect{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}, ViewRect{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := view
			if tc.name == "zero view" {
				v = Size{}
			}
			got := ToViewRect(tc.box, v)
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("ToViewRect mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToViewRect_InvertsFlipY(t *testing.T) {
	// A top-left box converted with FlipY lands back where it started.
	topLeft := detection.Rect{X: 0.25, Y: 0.1, W: 0.2, H: 0.3}
	got := ToViewRect(topLeft.FlipY(), Size{Width: 1, Height: 1})
	want := ViewRect{X: 0.25, Y: 0.1, Width: 0.2, Height: 0.3}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPresenter_FreshOverlayPerUpdate(t *testing.T) {
	var got []Overlay
	p := NewPresenter(Size{Width: 100, Height: 100}, SinkFunc(func(o Overlay) { got = append(got, o) }))

	obs := []detection.Observation{{Identifier: "buddha", Confidence: 0.9, Box: detection.Rect{W: 0.5, H: 0.5}}}
	p.Update(1, obs)
	p.Update(2, nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 overlays, got %d", len(got))
	}
	if got[0].ID == got[1].ID {
		t.Error("each update must carry a new overlay id")
	}
	if p.Last() != got[1].ID {
		t.Error("Last should track the newest overlay")
	}
	if len(got[1].Rects) != 0 {
		t.Errorf("empty update must clear rects, got %v", got[1].Rects)
	}
	if diff := cmp.Diff([]ViewRect{{X: 0, Y: 50, Width: 50, Height: 50}}, got[0].Rects); diff != "" {
		t.Errorf("rects mismatch (-want +got):\n%s", diff)
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		obs  []detection.Observation
		want []string
	}{
		{"empty", nil, []string{NoObjectsLabel}},
		{"one", []detection.Observation{{Identifier: "buddha", Confidence: 0.876}}, []string{"buddha (88%)"}},
		{
			"capped at three",
			[]detection.Observation{
				{Identifier: "a", Confidence: 0.9},
				{Identifier: "b", Confidence: 0.8},
				{Identifier: "c", Confidence: 0.7},
				{Identifier: "d", Confidence: 0.6},
			},
			[]string{"a (90%)", "b (80%)", "c (70%)"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Labels(tc.obs)); diff != "" {
				t.Errorf("Labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
