package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/recipecast/api/internal/model"
	"github.com/recipecast/api/pkg/response"
)

// VideoCatalog looks up video metadata.
type VideoCatalog interface {
	VideoDetails(ctx context.Context, videoID string) (*model.VideoDetails, error)
}

type YouTubeHandler struct {
	catalog VideoCatalog
}

func NewYouTubeHandler(catalog VideoCatalog) *YouTubeHandler {
	return &YouTubeHandler{catalog: catalog}
}

// Details handles GET /api/youtube/details?url=<video url>
func (h *YouTubeHandler) Details(c *fiber.Ctx) error {
	videoID, err := ExtractVideoID(c.Query("url"))
	if err != nil {
		return response.FromError(c, err)
	}

	details, err := h.catalog.VideoDetails(c.Context(), videoID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, details)
}
