package inference

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-lookout/pkg/detection"
)

type fakeDetector struct {
	obs    []detection.Observation
	err    error
	closed bool
}

func (f *fakeDetector) Detect([]byte) ([]detection.Observation, error) { return f.obs, f.err }
func (f *fakeDetector) Close() error                                    { f.closed = true; return nil }

func inferSync(t *testing.T, e Engine, seq uint64) Result {
	t.Helper()
	ch := make(chan Result, 1)
	e.Infer(Frame{Seq: seq}, func(r Result) { ch <- r })
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("completion never fired")
		return Result{}
	}
}

func TestInferenceError_Unwrap(t *testing.T) {
	err := WrapError("yolo", 42, ErrInferenceFailed)

	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, uint64(42), ie.Seq)
	assert.Equal(t, "yolo", ie.Engine)
	assert.ErrorIs(t, err, ErrInferenceFailed)
	assert.Contains(t, err.Error(), "frame 42")
	assert.Nil(t, WrapError("yolo", 1, nil))
}

func TestIsFatalAndSkip(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
		skip  bool
	}{
		{nil, false, false},
		{ErrInferenceFailed, false, true},
		{ErrNoResults, false, true},
		{fmt.Errorf("x: %w", ErrModelUnavailable), true, false},
		{WrapError("cam", 0, ErrPermissionDenied), false, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.fatal, IsFatal(tc.err), "IsFatal(%v)", tc.err)
		assert.Equal(t, tc.skip, IsSkip(tc.err), "IsSkip(%v)", tc.err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"default", nil, false},
		{"unknown kind", []Option{WithKind("tflite")}, true},
		{"no model", []Option{WithModelPath("")}, true},
		{"classifier without labels", []Option{WithKind(KindClassifier)}, true},
		{"classifier with labels", []Option{WithKind(KindClassifier), WithLabelsPath("l.txt")}, false},
		{"bad threshold", []Option{WithConfidenceThresh(1.5)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ApplyOptions(DefaultConfig(), tc.opts...).Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpenDetector_WrapsModelUnavailable(t *testing.T) {
	_, err := OpenDetector(ApplyOptions(DefaultConfig(), WithModelPath(t.TempDir()+"/missing.onnx")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = OpenDetector(ApplyOptions(DefaultConfig(), WithKind("bogus")))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNewEngine_NilDetector(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestDetectorEngine_Results(t *testing.T) {
	target := detection.Observation{Identifier: "buddha", Confidence: 0.9}

	tests := []struct {
		name    string
		det     *fakeDetector
		wantObs int
		wantErr error
	}{
		{"observations", &fakeDetector{obs: []detection.Observation{target}}, 1, nil},
		{"empty set is data", &fakeDetector{obs: []detection.Observation{}}, 0, nil},
		{"nil set is no data", &fakeDetector{}, 0, ErrNoResults},
		{"detector failure", &fakeDetector{err: errors.New("boom")}, 0, ErrInferenceFailed},
		{"model load failure", &fakeDetector{err: detection.ErrModelLoad}, 0, ErrModelUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewEngine(tc.det)
			require.NoError(t, err)

			r := inferSync(t, e, 7)
			if tc.wantErr != nil {
				assert.ErrorIs(t, r.Err, tc.wantErr)
				return
			}
			require.NoError(t, r.Err)
			assert.NotNil(t, r.Observations)
			assert.Len(t, r.Observations, tc.wantObs)
		})
	}
}

func TestDetectorEngine_Close(t *testing.T) {
	det := &fakeDetector{obs: []detection.Observation{}}
	e, err := NewEngine(det)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	assert.True(t, det.closed)
	require.NoError(t, e.Close(), "Close must be idempotent")

	r := inferSync(t, e, 1)
	assert.ErrorIs(t, r.Err, ErrEngineClosed)
}

func TestMock_Manual(t *testing.T) {
	m := NewMock(detection.Observation{Identifier: "buddha", Confidence: 0.9})
	m.Manual = true

	got := make(chan Result, 2)
	m.Infer(Frame{Seq: 1}, func(r Result) { got <- r })
	m.Infer(Frame{Seq: 2}, func(r Result) { got <- r })

	assert.Equal(t, 2, m.Pending())
	assert.Equal(t, 2, m.MaxInFlight())

	require.True(t, m.Complete(nil))
	r := <-got
	require.Len(t, r.Observations, 1)

	require.True(t, m.Complete(&Result{Err: ErrInferenceFailed}))
	r = <-got
	assert.ErrorIs(t, r.Err, ErrInferenceFailed)

	assert.False(t, m.Complete(nil))
	assert.Equal(t, 2, m.CallCount())
}

func TestScriptedMock_RepeatsLast(t *testing.T) {
	m := NewScriptedMock(
		Result{Observations: []detection.Observation{{Identifier: "a"}}},
		Result{Err: ErrNoResults},
	)

	r1 := inferSync(t, m, 1)
	r2 := inferSync(t, m, 2)
	r3 := inferSync(t, m, 3)

	assert.Len(t, r1.Observations, 1)
	assert.ErrorIs(t, r2.Err, ErrNoResults)
	assert.ErrorIs(t, r3.Err, ErrNoResults)
}
