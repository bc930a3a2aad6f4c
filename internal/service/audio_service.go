package service

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/client"
)

// AudioDownloader fetches the audio track of a video URL into a local file.
type AudioDownloader interface {
	Download(ctx context.Context, videoURL, outputPath string) error
}

// ScratchStorage hands out and reclaims local audio paths.
type ScratchStorage interface {
	NewScratchPath(videoID string) string
	Remove(path string)
}

// AudioExtractor turns a video id into a local mp3 file.
type AudioExtractor interface {
	Extract(ctx context.Context, videoID string) (string, error)
}

// AudioService downloads audio for a video into scratch storage
type AudioService struct {
	downloader AudioDownloader
	store      ScratchStorage
	log        *logrus.Entry
	stat       func(name string) (os.FileInfo, error)
}

// NewAudioService creates a new audio extraction service
func NewAudioService(downloader AudioDownloader, store ScratchStorage, log *logrus.Entry) *AudioService {
	return &AudioService{
		downloader: downloader,
		store:      store,
		log:        log,
		stat:       os.Stat,
	}
}

// Extract downloads the video's audio and returns the file path. On failure
// nothing is left on disk and no path is returned.
func (s *AudioService) Extract(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", apperr.New(apperr.ErrInvalidInput, "video id is required", nil)
	}

	outputPath := s.store.NewScratchPath(videoID)
	log := s.log.WithFields(logrus.Fields{"video_id": videoID, "path": outputPath})
	log.Debug("extracting audio")

	if err := s.downloader.Download(ctx, client.WatchURL(videoID), outputPath); err != nil {
		log.WithError(err).Error("audio extraction failed")
		s.store.Remove(outputPath)
		return "", apperr.New(apperr.ErrExtractionFailed, "Failed to extract audio from video", err)
	}

	info, err := s.stat(outputPath)
	if err != nil {
		log.WithError(err).Error("downloader exited cleanly but produced no file")
		s.store.Remove(outputPath)
		return "", apperr.New(apperr.ErrExtractionFailed, "Failed to extract audio from video", fmt.Errorf("missing output file: %w", err))
	}
	if info.Size() == 0 {
		s.store.Remove(outputPath)
		return "", apperr.New(apperr.ErrExtractionFailed, "Failed to extract audio from video", fmt.Errorf("empty output file %s", outputPath))
	}

	log.WithField("bytes", info.Size()).Info("audio extracted")
	return outputPath, nil
}
