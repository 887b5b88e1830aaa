package inference

import (
	"sync"
	"time"

	"github.com/teslashibe/go-lookout/pkg/detection"
)

// Mock implements Engine for testing.
//
// By default each Infer completes asynchronously with the result of
// InferFunc after Delay. With Manual set, calls are parked until the test
// releases them with Complete, which makes overlap deterministic.
type Mock struct {
	// InferFunc produces the result for a frame. Nil yields an empty observation set.
	InferFunc func(frame Frame) Result

	// Delay is applied before completing in automatic mode.
	Delay time.Duration

	// Manual parks calls until Complete is invoked.
	Manual bool

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu          sync.Mutex
	calls       []MockCall
	pending     []pendingCall
	outstanding int
	maxInFlight int
}

// MockCall records an Infer invocation.
type MockCall struct {
	Seq  uint64
	Time time.Time
}

type pendingCall struct {
	frame Frame
	done  Completion
}

// NewMock creates a mock engine that answers every frame with obs.
func NewMock(obs ...detection.Observation) *Mock {
	return &Mock{
		InferFunc: func(Frame) Result {
			out := make([]detection.Observation, len(obs))
			copy(out, obs)
			return Result{Observations: out}
		},
	}
}

// NewScriptedMock answers successive calls with the given results in order,
// repeating the last one once the script is exhausted.
func NewScriptedMock(script ...Result) *Mock {
	var (
		mu sync.Mutex
		i  int
	)
	return &Mock{
		InferFunc: func(Frame) Result {
			mu.Lock()
			defer mu.Unlock()
			if len(script) == 0 {
				return Result{Observations: []detection.Observation{}}
			}
			r := script[i]
			if i < len(script)-1 {
				i++
			}
			return r
		},
	}
}

// Name identifies the engine
func (m *Mock) Name() string { return "mock" }

// Infer records the call and completes it according to the mock mode.
func (m *Mock) Infer(frame Frame, done Completion) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Seq: frame.Seq, Time: time.Now()})
	m.outstanding++
	if m.outstanding > m.maxInFlight {
		m.maxInFlight = m.outstanding
	}
	if m.Manual {
		m.pending = append(m.pending, pendingCall{frame: frame, done: done})
		m.mu.Unlock()
		return
	}
	delay := m.Delay
	m.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		m.finish(frame, done, nil)
	}()
}

// Complete releases the oldest parked call. If r is nil InferFunc decides
// the result. It reports false when nothing is pending.
func (m *Mock) Complete(r *Result) bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	p := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	m.finish(p.frame, p.done, r)
	return true
}

func (m *Mock) finish(frame Frame, done Completion, override *Result) {
	var r Result
	switch {
	case override != nil:
		r = *override
	case m.InferFunc != nil:
		r = m.InferFunc(frame)
	default:
		r = Result{Observations: []detection.Observation{}}
	}

	m.mu.Lock()
	m.outstanding--
	m.mu.Unlock()

	done(r)
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Infer was called.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Pending returns how many manual calls are parked.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// MaxInFlight returns the highest number of simultaneously outstanding calls.
func (m *Mock) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Close calls CloseFunc if set.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Ensure Mock implements Engine.
var _ Engine = (*Mock)(nil)
