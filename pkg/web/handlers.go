package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lookout/pkg/camera"
	"github.com/teslashibe/go-lookout/pkg/hub"
)

// handleStatus returns a snapshot of the session
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st, err := s.ctrl.Status(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(st)
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// PermissionRequest is the request body for reporting camera permission
type PermissionRequest struct {
	Granted bool `json:"granted"`
}

// handlePermission forwards a permission change to the session
func (s *Server) handlePermission(c *fiber.Ctx) error {
	var req PermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}
	s.ctrl.ReportPermission(req.Granted)
	return c.JSON(fiber.Map{"granted": req.Granted})
}

// handleGetCamera returns the current capture configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{
		"config":       s.camera.GetConfigJSON(),
		"capabilities": camera.Capabilities(),
	})
}

// handleUpdateCamera applies a partial configuration update
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return fiber.ErrNotFound
	}

	params := make(map[string]interface{})
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.AddLog("camera", "config updated")
	return c.JSON(s.camera.GetConfigJSON())
}

// handleListPresets returns the named capture presets
func (s *Server) handleListPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

// serveHub attaches a websocket connection to h until it disconnects
func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		if client == nil {
			return
		}
		client.Run() // Blocks until connection closes
	}
}
