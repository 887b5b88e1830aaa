package coord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestLoop_RunsInPostOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_SerializesConcurrentPosters(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, l.Do(context.Background(), func() { got = counter }))
	assert.Equal(t, 2000, got)
}

func TestLoop_StopRejectsWork(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l, _ := startLoop(t)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_RunTwice(t *testing.T) {
	l, _ := startLoop(t)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Error(t, l.Run(context.Background()))
}

func TestLoop_DeferRunsBeforeNextTask(t *testing.T) {
	l, _ := startLoop(t)

	var got []string
	block := make(chan struct{})
	l.Post(func() { <-block })
	l.Post(func() {
		got = append(got, "first")
		l.Defer(func() {
			got = append(got, "deferred")
			l.Defer(func() { got = append(got, "nested") })
		})
	})
	l.Post(func() { got = append(got, "second") })
	close(block)

	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []string{"first", "deferred", "nested", "second"}, got)
}
