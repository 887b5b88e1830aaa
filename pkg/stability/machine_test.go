package stability

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-lookout/pkg/detection"
	"github.com/teslashibe/go-lookout/pkg/inference"
	"github.com/teslashibe/go-lookout/pkg/pipeline"
)

var seq uint64

func completion(obs ...detection.Observation) pipeline.Completion {
	seq++
	if obs == nil {
		obs = []detection.Observation{}
	}
	return pipeline.Completion{Seq: seq, Result: inference.Result{Observations: obs}}
}

func failed(err error) pipeline.Completion {
	seq++
	return pipeline.Completion{Seq: seq, Result: inference.Result{Err: err}}
}

func target(conf float64) detection.Observation {
	return detection.Observation{Identifier: "buddha", Confidence: conf}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func transitions(events []Event) []EventKind {
	var out []EventKind
	for _, e := range events {
		if e.IsTransition() {
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestMachine_AcquireThenLoseAfterSixMisses(t *testing.T) {
	m := New(DefaultConfig())

	ev := m.Apply(completion(target(0.9)))
	assert.Equal(t, []EventKind{ObservationsUpdated, TargetAcquired}, kinds(ev))
	assert.Equal(t, Locked, m.State())

	for i := 1; i <= 5; i++ {
		ev = m.Apply(completion())
		assert.Empty(t, transitions(ev), "miss %d must not release", i)
		assert.Equal(t, i, m.Counter())
		assert.Equal(t, Locked, m.State())
	}

	ev = m.Apply(completion())
	assert.Equal(t, []EventKind{ObservationsUpdated, TargetLost}, kinds(ev))
	assert.Equal(t, 6, m.Counter())
	assert.Equal(t, Searching, m.State())
}

func TestMachine_IdempotentTransitions(t *testing.T) {
	m := New(DefaultConfig())

	var acquired, lost int
	count := func(ev []Event) {
		for _, e := range ev {
			switch e.Kind {
			case TargetAcquired:
				acquired++
			case TargetLost:
				lost++
			}
		}
	}

	for i := 0; i < 10; i++ {
		count(m.Apply(completion(target(0.95))))
	}
	assert.Equal(t, 1, acquired)

	for i := 0; i < 20; i++ {
		count(m.Apply(completion()))
	}
	assert.Equal(t, 1, lost)
	assert.Equal(t, 20, m.Counter())
}

func TestMachine_QualifyResetsCounter(t *testing.T) {
	m := New(DefaultConfig())
	m.Apply(completion(target(0.9)))

	for i := 0; i < 5; i++ {
		m.Apply(completion())
	}
	require.Equal(t, 5, m.Counter())

	ev := m.Apply(completion(target(0.85)))
	assert.Empty(t, transitions(ev))
	assert.Equal(t, 0, m.Counter())

	for i := 0; i < 5; i++ {
		m.Apply(completion())
	}
	assert.Equal(t, Locked, m.State(), "reset counter must restart the miss run")
}

func TestMachine_Qualification(t *testing.T) {
	tests := []struct {
		name string
		obs  []detection.Observation
		want bool
	}{
		{"above threshold", []detection.Observation{target(0.81)}, true},
		{"at threshold", []detection.Observation{target(0.8)}, false},
		{"wrong identifier", []detection.Observation{{Identifier: "cat", Confidence: 0.99}}, false},
		{"low confidence", []detection.Observation{target(0.6)}, false},
		{"mixed", []detection.Observation{{Identifier: "cat", Confidence: 0.99}, target(0.9)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := New(DefaultConfig())
			ev := m.Apply(completion(tc.obs...))
			got := len(transitions(ev)) == 1
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMachine_TieBreakPicksFirstHighest(t *testing.T) {
	m := New(DefaultConfig())

	first := detection.Observation{Identifier: "buddha", Confidence: 0.9, Box: detection.Rect{X: 0.1}}
	second := detection.Observation{Identifier: "buddha", Confidence: 0.9, Box: detection.Rect{X: 0.2}}
	low := detection.Observation{Identifier: "buddha", Confidence: 0.85, Box: detection.Rect{X: 0.3}}

	ev := m.Apply(completion(low, first, second))
	require.Len(t, ev, 2)
	assert.Equal(t, first, ev[1].Target)
}

func TestMachine_ErrorsAreSkipped(t *testing.T) {
	m := New(DefaultConfig())
	m.Apply(completion(target(0.9)))
	for i := 0; i < 5; i++ {
		m.Apply(completion())
	}
	require.Equal(t, 5, m.Counter())

	for _, err := range []error{inference.ErrInferenceFailed, inference.ErrNoResults} {
		ev := m.Apply(failed(err))
		assert.Equal(t, []EventKind{InferenceFailed}, kinds(ev))
		assert.ErrorIs(t, ev[0].Err, err)
	}

	// nil observation set is "no data", not an empty frame
	ev := m.Apply(pipeline.Completion{Seq: 99})
	assert.Equal(t, []EventKind{InferenceFailed}, kinds(ev))

	assert.Equal(t, 5, m.Counter(), "errors neither count as a miss nor reset")
	assert.Equal(t, Locked, m.State())
	assert.Equal(t, uint64(3), m.Stats().Skipped)
}

func TestMachine_ModelUnavailable(t *testing.T) {
	m := New(DefaultConfig())
	ev := m.Apply(failed(inference.ErrModelUnavailable))
	assert.Equal(t, []EventKind{ModelUnavailable}, kinds(ev))
	assert.Equal(t, Searching, m.State())
	assert.Equal(t, 0, m.Counter())
}

func TestMachine_PermissionDeniedIsNotFatal(t *testing.T) {
	m := New(DefaultConfig())
	m.Apply(completion(target(0.9)))
	m.Apply(completion())

	ev := m.Apply(failed(inference.WrapError("camera", 0, inference.ErrPermissionDenied)))
	assert.Equal(t, []EventKind{PermissionDenied}, kinds(ev))
	assert.ErrorIs(t, ev[0].Err, inference.ErrPermissionDenied)
	assert.Equal(t, 1, m.Counter(), "a denied frame is not a miss")
	assert.Equal(t, Locked, m.State())
}

func TestMachine_DisplaySet(t *testing.T) {
	m := New(DefaultConfig())
	obs := []detection.Observation{
		{Identifier: "cat", Confidence: 0.55},
		{Identifier: "dog", Confidence: 0.4},
		target(0.7),
		{Identifier: "cup", Confidence: 0.5},
	}

	ev := m.Apply(completion(obs...))
	require.Len(t, ev, 1)

	want := []detection.Observation{target(0.7), {Identifier: "cat", Confidence: 0.55}}
	if diff := cmp.Diff(want, ev[0].Observations); diff != "" {
		t.Errorf("display set mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, m.Counter(), "a display-only target is still a miss")
}

func TestMachine_Reset(t *testing.T) {
	m := New(DefaultConfig())
	m.Apply(completion(target(0.9)))
	m.Apply(completion())

	m.Reset()
	assert.Equal(t, Searching, m.State())
	assert.Equal(t, 0, m.Counter())

	ev := m.Apply(completion(target(0.9)))
	assert.Equal(t, []EventKind{TargetAcquired}, transitions(ev))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.TargetID = "" },
		func(c *Config) { c.AcquireThreshold = 1.2 },
		func(c *Config) { c.DisplayThreshold = -0.1 },
		func(c *Config) { c.DetectionThreshold = -1 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "locked", Locked.String())
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "target_lost", TargetLost.String())
	assert.Equal(t, "permission_denied", PermissionDenied.String())
}
