package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything the HTTP surface serves.
type Handlers struct {
	Transcription *TranscriptionHandler
	QA            *QAHandler
	YouTube       *YouTubeHandler
	Health        *HealthHandler
}

// Register mounts all routes on app.
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Check)

	api := app.Group("/api")

	transcription := api.Group("/transcription")
	transcription.Post("/start", h.Transcription.Start)
	transcription.Get("/:transcriptId", h.Transcription.Status)

	api.Post("/qa/ask", h.QA.Ask)
	api.Get("/youtube/details", h.YouTube.Details)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcription/:transcriptId", h.Transcription.Stream())
}
