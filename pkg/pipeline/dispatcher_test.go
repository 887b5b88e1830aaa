package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-lookout/pkg/detection"
	"github.com/teslashibe/go-lookout/pkg/inference"
)

func frame(seq uint64) inference.Frame {
	return inference.Frame{Seq: seq, Timestamp: time.Now()}
}

func TestDispatcher_DropsWhileBusy(t *testing.T) {
	engine := inference.NewMock()
	engine.Manual = true

	var got []Completion
	d := NewDispatcher(engine, func(c Completion) { got = append(got, c) })

	require.True(t, d.Submit(frame(1)))
	for seq := uint64(2); seq <= 10; seq++ {
		assert.False(t, d.Submit(frame(seq)), "frame %d should be dropped", seq)
	}
	assert.Equal(t, 1, engine.CallCount(), "dropped frames must never reach the engine")

	require.True(t, engine.Complete(nil))
	require.True(t, d.Submit(frame(11)))
	require.True(t, engine.Complete(nil))

	s := d.Stats()
	assert.Equal(t, uint64(11), s.Submitted)
	assert.Equal(t, uint64(2), s.Dispatched)
	assert.Equal(t, uint64(9), s.Dropped)
	assert.Equal(t, uint64(2), s.Completed)
	assert.False(t, s.Busy)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(11), got[1].Seq)
}

func TestDispatcher_ConcurrentSubmitSingleFlight(t *testing.T) {
	engine := inference.NewMock(detection.Observation{Identifier: "buddha", Confidence: 0.9})
	engine.Delay = 2 * time.Millisecond

	var (
		completed atomic.Int64
		inside    atomic.Int32
		overlap   atomic.Bool
	)
	d := NewDispatcher(engine, func(c Completion) {
		if inside.Add(1) > 1 {
			overlap.Store(true)
		}
		completed.Add(1)
		inside.Add(-1)
	})

	var wg sync.WaitGroup
	var next atomic.Uint64
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.Submit(frame(next.Add(1)))
				time.Sleep(50 * time.Microsecond)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return !d.Busy() }, 2*time.Second, time.Millisecond)

	assert.Equal(t, 1, engine.MaxInFlight(), "never more than one outstanding inference")
	s := d.Stats()
	assert.Equal(t, uint64(800), s.Submitted)
	assert.Equal(t, s.Submitted, s.Dispatched+s.Dropped)
	assert.Equal(t, int64(s.Dispatched), completed.Load())
	assert.Equal(t, uint64(engine.CallCount()), s.Dispatched)
	assert.False(t, overlap.Load(), "completion callbacks must never overlap")
}

func TestDispatcher_RecoverableErrorKeepsRunning(t *testing.T) {
	engine := inference.NewScriptedMock(
		inference.Result{Err: inference.ErrInferenceFailed},
		inference.Result{Observations: []detection.Observation{}},
	)
	done := make(chan Completion, 4)
	d := NewDispatcher(engine, func(c Completion) { done <- c })

	require.True(t, d.Submit(frame(1)))
	c := <-done
	assert.ErrorIs(t, c.Err, inference.ErrInferenceFailed)

	require.Eventually(t, func() bool { return d.Submit(frame(2)) }, time.Second, time.Millisecond)
	c = <-done
	assert.NoError(t, c.Err)

	disabled, _ := d.Disabled()
	assert.False(t, disabled)
	assert.Equal(t, uint64(1), d.Stats().Failed)
}

func TestDispatcher_ModelUnavailableDisables(t *testing.T) {
	engine := inference.NewMock()
	engine.Manual = true
	d := NewDispatcher(engine, nil)

	require.True(t, d.Submit(frame(1)))
	require.True(t, engine.Complete(&inference.Result{Err: inference.ErrModelUnavailable}))

	disabled, err := d.Disabled()
	require.True(t, disabled)
	assert.ErrorIs(t, err, inference.ErrModelUnavailable)

	assert.False(t, d.Submit(frame(2)))
	assert.Equal(t, 1, engine.CallCount())
}

func TestDispatcher_PauseResume(t *testing.T) {
	engine := inference.NewMock()
	engine.Manual = true
	d := NewDispatcher(engine, nil)

	d.Pause()
	assert.False(t, d.Submit(frame(1)))
	assert.True(t, d.Stats().Paused)

	d.Resume()
	assert.True(t, d.Submit(frame(2)))
	assert.Equal(t, 1, engine.CallCount())
}

type doubleEngine struct{}

func (doubleEngine) Name() string { return "double" }
func (doubleEngine) Close() error { return nil }
func (doubleEngine) Infer(f inference.Frame, done inference.Completion) {
	done(inference.Result{Observations: []detection.Observation{}})
	done(inference.Result{Observations: []detection.Observation{}})
}

func TestDispatcher_IgnoresDuplicateCompletion(t *testing.T) {
	var count int
	d := NewDispatcher(doubleEngine{}, func(Completion) { count++ })

	require.True(t, d.Submit(frame(1)))
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(1), d.Stats().Completed)
	assert.False(t, d.Busy())
}
