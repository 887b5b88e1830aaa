package audio

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-lookout/internal/log"
)

// LogSound implements behavior.Sound by logging instead of playing. It is
// used when audio is disabled and keeps a record of the commands it saw.
type LogSound struct {
	logger *slog.Logger

	mu      sync.Mutex
	history []string
}

// NewLogSound creates a silent sound collaborator.
func NewLogSound() *LogSound {
	return &LogSound{logger: log.For("audio")}
}

func (s *LogSound) record(entry string) {
	s.mu.Lock()
	s.history = append(s.history, entry)
	s.mu.Unlock()
}

// StartLoop logs the loop start.
func (s *LogSound) StartLoop(soundID string) {
	s.record("loop:" + soundID)
	s.logger.Info("loop started (silent)", "sound", soundID)
}

// StopLoop logs the loop stop.
func (s *LogSound) StopLoop() {
	s.record("stop")
	s.logger.Info("loop stopped (silent)")
}

// PlayOnce logs a one-shot sound.
func (s *LogSound) PlayOnce(soundID string) {
	s.record("once:" + soundID)
	s.logger.Debug("play (silent)", "sound", soundID)
}

// History returns a copy of the recorded commands.
func (s *LogSound) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}
