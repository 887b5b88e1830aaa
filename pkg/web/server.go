// Package web provides a real-time dashboard for a lookout session
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/camera"
	"github.com/teslashibe/go-lookout/pkg/hub"
	"github.com/teslashibe/go-lookout/pkg/session"
)

// Config holds dashboard settings.
type Config struct {
	Port      string `yaml:"port" json:"port"`
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	// StatusDebounce coalesces status pushes triggered by bursts of events.
	StatusDebounce time.Duration `yaml:"status_debounce" json:"status_debounce"`

	// MaxLogs bounds the in-memory log buffer.
	MaxLogs int `yaml:"max_logs" json:"max_logs"`
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Port:           "8181",
		StaticDir:      "./web",
		StatusDebounce: 100 * time.Millisecond,
		MaxLogs:        500,
	}
}

// Controller is the part of a session the dashboard drives.
type Controller interface {
	Status(ctx context.Context) (session.Status, error)
	ReportPermission(granted bool)
}

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // event kind
	Message string `json:"message"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	ctrl   Controller
	camera *camera.Manager

	// Log buffer (last MaxLogs entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	eventHub  *hub.Hub
	cameraHub *hub.Hub

	refresh func(func())
}

// NewServer creates a new dashboard server. cam may be nil when the frame
// source is not configurable.
func NewServer(cfg Config, ctrl Controller, cam *camera.Manager) *Server {
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = DefaultConfig().MaxLogs
	}
	s := &Server{
		cfg:       cfg,
		logger:    log.For("web"),
		ctrl:      ctrl,
		camera:    cam,
		logs:      make([]LogEntry, 0, cfg.MaxLogs),
		statusHub: hub.New("status", hub.WithReplay()),
		eventHub:  hub.New("events"),
		cameraHub: hub.New("camera"),
		refresh:   debounce.New(cfg.StatusDebounce),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Lookout Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/permission", s.handlePermission)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleListPresets)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))
	app.Get("/ws/events", websocket.New(s.serveHub(s.eventHub)))
	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))

	s.app = app
	return s
}

// App exposes the fiber app for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.eventHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%s", s.cfg.Port))
		errCh <- s.app.Listen(":" + s.cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// HandleEvent records and broadcasts a session event. It has the
// session.Subscribe signature and never blocks.
func (s *Server) HandleEvent(ev session.Event) {
	if ev.Kind != session.EventObservationsUpdated {
		s.AddLog(string(ev.Kind), describe(ev))
	}
	if err := s.eventHub.BroadcastJSON(ev); err != nil {
		s.logger.Warn("encode event", "kind", ev.Kind, "err", err)
	}
	if ev.Kind != session.EventObservationsUpdated {
		s.refresh(s.pushStatus)
	}
}

// pushStatus runs off the coordination loop (on the debounce timer), so it
// may wait for a snapshot.
func (s *Server) pushStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := s.ctrl.Status(ctx)
	if err != nil {
		s.logger.Debug("status snapshot", "err", err)
		return
	}
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "err", err)
	}
}

// AddLog adds a log entry and keeps the buffer bounded.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.cfg.MaxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()
}

// Logs returns a copy of the buffered log entries.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

// SendCameraFrame sends a camera frame to all connected clients
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

func describe(ev session.Event) string {
	switch ev.Kind {
	case session.EventTargetAcquired:
		if ev.Target != nil {
			return fmt.Sprintf("%s (%.0f%%)", ev.Target.Identifier, ev.Target.Confidence*100)
		}
		return "target acquired"
	case session.EventTargetLost:
		return "target lost"
	case session.EventCountdownTick:
		return fmt.Sprintf("%d", ev.Remaining)
	case session.EventModeChanged:
		return ev.Mode
	default:
		return ev.Error
	}
}
