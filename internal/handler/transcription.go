package handler

import (
	"context"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/recipecast/api/internal/model"
	"github.com/recipecast/api/pkg/response"
)

// TranscriptionPipeline starts jobs and reports their status.
type TranscriptionPipeline interface {
	StartJob(ctx context.Context, videoID string) (*model.StartResponse, error)
	QueryStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)
}

// StatusStreamer serves one websocket status stream.
type StatusStreamer interface {
	HandleConnection(c *websocket.Conn, jobID string)
}

type TranscriptionHandler struct {
	pipeline TranscriptionPipeline
	stream   StatusStreamer
}

func NewTranscriptionHandler(pipeline TranscriptionPipeline, stream StatusStreamer) *TranscriptionHandler {
	return &TranscriptionHandler{
		pipeline: pipeline,
		stream:   stream,
	}
}

// Start handles POST /api/transcription/start?url=<video url>
// A bare id may be passed as videoId instead.
func (h *TranscriptionHandler) Start(c *fiber.Ctx) error {
	videoID := strings.TrimSpace(c.Query("videoId"))
	if videoID != "" {
		if !ValidVideoID(videoID) {
			return response.ValidationError(c, "Invalid video id", fiber.Map{"videoId": "format"})
		}
	} else {
		var err error
		videoID, err = ExtractVideoID(c.Query("url"))
		if err != nil {
			return response.FromError(c, err)
		}
	}

	result, err := h.pipeline.StartJob(c.Context(), videoID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, result)
}

// Status handles GET /api/transcription/:transcriptId
func (h *TranscriptionHandler) Status(c *fiber.Ctx) error {
	jobID := strings.TrimSpace(c.Params("transcriptId"))
	if jobID == "" {
		return response.ValidationError(c, "Transcript ID is required", nil)
	}

	result, err := h.pipeline.QueryStatus(c.Context(), jobID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, result)
}

// Stream handles GET /ws/transcription/:transcriptId
func (h *TranscriptionHandler) Stream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.stream.HandleConnection(c, c.Params("transcriptId"))
	})
}
