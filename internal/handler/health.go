package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Configurable is any provider client that can report missing credentials.
type Configurable interface {
	IsConfigured() bool
}

type HealthHandler struct {
	providers map[string]Configurable
	started   time.Time
}

// NewHealthHandler reports on the named providers.
func NewHealthHandler(providers map[string]Configurable) *HealthHandler {
	return &HealthHandler{providers: providers, started: time.Now()}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	services := fiber.Map{}
	for name, p := range h.providers {
		services[name] = p.IsConfigured()
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"uptime":   int64(time.Since(h.started).Seconds()),
		"services": services,
	})
}
