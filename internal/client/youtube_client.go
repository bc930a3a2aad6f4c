package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/config"
	"github.com/recipecast/api/internal/model"
)

// WatchURL is the canonical page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// YouTubeClient reads video metadata from the YouTube Data API
type YouTubeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type thumbnail struct {
	URL string `json:"url"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			Thumbnails struct {
				Default thumbnail `json:"default"`
				Medium  thumbnail `json:"medium"`
				High    thumbnail `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// NewYouTubeClient creates a new YouTube Data API client
func NewYouTubeClient(cfg *config.YouTubeConfig) *YouTubeClient {
	return &YouTubeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// IsConfigured returns true if the client has an API key
func (c *YouTubeClient) IsConfigured() bool {
	return c.apiKey != ""
}

// VideoDetails looks up title and thumbnail for a video id.
func (c *YouTubeClient) VideoDetails(ctx context.Context, videoID string) (*model.VideoDetails, error) {
	if !c.IsConfigured() {
		return nil, apperr.NotConfigured("YOUTUBE_API_KEY")
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)

	out, err := c.fetch(ctx, q)
	if err != nil {
		return nil, apperr.New(apperr.ErrProviderFailed, "Failed to fetch video details", err)
	}

	if len(out.Items) == 0 {
		return nil, apperr.New(apperr.ErrVideoNotFound, "Video not found", nil)
	}

	item := out.Items[0]
	thumb := item.Snippet.Thumbnails.Medium.URL
	if thumb == "" {
		thumb = item.Snippet.Thumbnails.Default.URL
	}

	return &model.VideoDetails{
		Title:        item.Snippet.Title,
		ThumbnailURL: thumb,
		VideoID:      videoID,
		URL:          WatchURL(videoID),
	}, nil
}

func (c *YouTubeClient) fetch(ctx context.Context, q url.Values) (*videosResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out videosResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}
