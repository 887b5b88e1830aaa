package audio

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess stands in for gst-launch. It is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("LOOKOUT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("LOOKOUT_HELPER_MODE") == "hang" {
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

type fakeLauncher struct {
	mu    sync.Mutex
	calls [][]string
	mode  string
}

func (f *fakeLauncher) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
	cmd.Env = append(os.Environ(), "LOOKOUT_HELPER_PROCESS=1", "LOOKOUT_HELPER_MODE="+f.mode)
	return cmd
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestPlayer(mode string) (*Player, *fakeLauncher) {
	fl := &fakeLauncher{mode: mode}
	p := NewPlayer(DefaultConfig())
	p.command = fl.command
	return p, fl
}

func TestPlayer_Args(t *testing.T) {
	p := NewPlayer(DefaultConfig())
	assert.Equal(t, "sounds/chant.mp3", p.Path("chant"))

	args := p.Args("chant")
	assert.Equal(t, "-q", args[0])
	assert.Contains(t, args, "location=sounds/chant.mp3")
	assert.Equal(t, "autoaudiosink", args[len(args)-1])
}

func TestPlayer_PlayOnce(t *testing.T) {
	p, fl := newTestPlayer("")

	var ended sync.WaitGroup
	ended.Add(1)
	p.OnPlaybackEnd = func(id string) {
		assert.Equal(t, "bell", id)
		ended.Done()
	}

	p.PlayOnce("bell")
	ended.Wait()
	require.NoError(t, p.Close())

	require.Equal(t, 1, fl.count())
	assert.Equal(t, "gst-launch-1.0", fl.calls[0][0])
}

func TestPlayer_LoopRestartsUntilStopped(t *testing.T) {
	p, fl := newTestPlayer("")

	p.StartLoop("chant")
	assert.Equal(t, "chant", p.Looping())
	require.Eventually(t, func() bool { return fl.count() >= 3 }, 10*time.Second, 5*time.Millisecond)

	p.StopLoop()
	assert.Empty(t, p.Looping())
	require.NoError(t, p.Close())

	n := fl.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, fl.count(), "no playback after stop")
}

func TestPlayer_LoopThrottlesInstantExit(t *testing.T) {
	fl := &fakeLauncher{}
	cfg := DefaultConfig()
	cfg.RetryDelay = 0
	p := NewPlayer(cfg)
	p.command = fl.command

	p.StartLoop("chant")
	time.Sleep(5 * minLoopGap / 2)
	p.StopLoop()
	require.NoError(t, p.Close())

	assert.GreaterOrEqual(t, fl.count(), 1)
	assert.LessOrEqual(t, fl.count(), 4, "relaunches are spaced by the minimum gap")
}

func TestPlayer_StopKillsRunningProcess(t *testing.T) {
	p, fl := newTestPlayer("hang")

	p.StartLoop("chant")
	require.Eventually(t, func() bool { return fl.count() == 1 }, 5*time.Second, 5*time.Millisecond)

	start := time.Now()
	p.StopLoop()
	require.NoError(t, p.Close())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLogSound(t *testing.T) {
	s := NewLogSound()
	s.StartLoop("chant")
	s.PlayOnce("bell")
	s.StopLoop()
	assert.Equal(t, []string{"loop:chant", "once:bell", "stop"}, s.History())
}
