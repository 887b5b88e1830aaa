// Package audio plays the ambient loop and one-shot effects through
// GStreamer subprocesses.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/go-lookout/internal/log"
)

// Config holds audio playback settings.
type Config struct {
	// SoundDir holds one file per sound id.
	SoundDir string `yaml:"sound_dir" json:"sound_dir"`

	// Extension is appended to the sound id to find its file.
	Extension string `yaml:"extension" json:"extension"`

	// Launcher is the gst-launch binary.
	Launcher string `yaml:"launcher" json:"launcher"`

	// Sink is the GStreamer audio sink element.
	Sink string `yaml:"sink" json:"sink"`

	// RetryDelay is the pause before restarting a loop whose process failed.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DefaultConfig returns settings for a desktop audio device.
func DefaultConfig() Config {
	return Config{
		SoundDir:   "sounds",
		Extension:  ".mp3",
		Launcher:   "gst-launch-1.0",
		Sink:       "autoaudiosink",
		RetryDelay: 500 * time.Millisecond,
	}
}

// minLoopGap bounds how often a loop relaunches a process that exits at once.
const minLoopGap = 100 * time.Millisecond

// Player implements behavior.Sound. Every command returns immediately; the
// playback processes run on their own goroutines.
type Player struct {
	cfg    Config
	logger *slog.Logger

	// command builds the playback process. Replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	loopCancel context.CancelFunc
	loopID     string

	// Callbacks
	OnPlaybackStart func(soundID string)
	OnPlaybackEnd   func(soundID string)
}

// NewPlayer creates a player.
func NewPlayer(cfg Config) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		cfg:     cfg,
		logger:  log.For("audio"),
		command: exec.CommandContext,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the file played for soundID.
func (p *Player) Path(soundID string) string {
	return filepath.Join(p.cfg.SoundDir, soundID+p.cfg.Extension)
}

// Args returns the gst-launch pipeline for soundID.
func (p *Player) Args(soundID string) []string {
	return []string{
		"-q",
		"filesrc", "location=" + p.Path(soundID),
		"!", "decodebin",
		"!", "audioconvert",
		"!", "audioresample",
		"!", p.cfg.Sink,
	}
}

// StartLoop plays soundID repeatedly until StopLoop. A running loop is
// replaced.
func (p *Player) StartLoop(soundID string) {
	p.mu.Lock()
	if p.loopCancel != nil {
		p.loopCancel()
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.loopCancel = cancel
	p.loopID = soundID
	p.mu.Unlock()

	p.logger.Info("loop started", "sound", soundID)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for ctx.Err() == nil {
			started := time.Now()
			err := p.play(ctx, soundID)
			if ctx.Err() != nil {
				return
			}
			wait := minLoopGap - time.Since(started)
			if err != nil {
				p.logger.Warn("loop playback failed", "sound", soundID, "err", err)
				wait = max(p.cfg.RetryDelay, minLoopGap)
			}
			if wait <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}()
}

// StopLoop stops the running loop, if any.
func (p *Player) StopLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loopCancel == nil {
		return
	}
	p.loopCancel()
	p.loopCancel = nil
	p.logger.Info("loop stopped", "sound", p.loopID)
	p.loopID = ""
}

// Looping returns the id of the running loop, or "".
func (p *Player) Looping() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopID
}

// PlayOnce plays soundID one time in the background.
func (p *Player) PlayOnce(soundID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.play(p.ctx, soundID); err != nil && p.ctx.Err() == nil {
			p.logger.Warn("playback failed", "sound", soundID, "err", err)
		}
	}()
}

func (p *Player) play(ctx context.Context, soundID string) error {
	cmd := p.command(ctx, p.cfg.Launcher, p.Args(soundID)...)

	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart(soundID)
	}
	err := cmd.Run()
	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd(soundID)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", p.cfg.Launcher, soundID, err)
	}
	return nil
}

// Close stops all playback and waits for the processes to exit.
func (p *Player) Close() error {
	p.StopLoop()
	p.cancel()
	p.wg.Wait()
	return nil
}
