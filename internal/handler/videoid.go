package handler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/recipecast/api/internal/apperr"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID pulls the video id out of a watch, shorts, embed or
// youtu.be URL.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.New(apperr.ErrInvalidInput, "URL is required", nil)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperr.New(apperr.ErrInvalidInput, "Invalid YouTube URL", err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com":
		switch {
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = firstSegment(strings.TrimPrefix(u.Path, "/shorts/"))
		case strings.HasPrefix(u.Path, "/embed/"):
			id = firstSegment(strings.TrimPrefix(u.Path, "/embed/"))
		default:
			id = u.Query().Get("v")
		}
	}

	if !ValidVideoID(id) {
		return "", apperr.New(apperr.ErrInvalidInput, "Invalid YouTube URL", nil)
	}
	return id, nil
}

// ValidVideoID reports whether id has the shape of a YouTube video id.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
