package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/apperr"
)

const audioExt = ".mp3"

// ScratchStore owns the directory where downloaded audio lives between
// extraction and upload.
type ScratchStore struct {
	dir string
	log *logrus.Entry

	mkdirAll   func(path string, perm os.FileMode) error
	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(name string) error
	glob       func(pattern string) ([]string, error)
}

// NewScratchStore creates a store rooted at dir. Call EnsureReady before use.
func NewScratchStore(dir string, log *logrus.Entry) *ScratchStore {
	return &ScratchStore{
		dir:        dir,
		log:        log,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		glob:       filepath.Glob,
	}
}

// Dir returns the scratch directory.
func (s *ScratchStore) Dir() string {
	return s.dir
}

// EnsureReady creates the directory if needed and proves it is writable.
func (s *ScratchStore) EnsureReady() error {
	if err := s.mkdirAll(s.dir, 0o755); err != nil {
		return apperr.New(apperr.ErrStorageUnavailable, fmt.Sprintf("cannot create scratch directory %s", s.dir), err)
	}

	probe, err := s.createTemp(s.dir, ".probe-*")
	if err != nil {
		return apperr.New(apperr.ErrStorageUnavailable, fmt.Sprintf("scratch directory %s is not writable", s.dir), err)
	}
	name := probe.Name()
	probe.Close()

	if err := s.remove(name); err != nil {
		return apperr.New(apperr.ErrStorageUnavailable, fmt.Sprintf("cannot delete probe file in %s", s.dir), err)
	}
	return nil
}

// PathFor maps a video id and an optional job-scoped suffix to a file path.
// It has no side effects.
func (s *ScratchStore) PathFor(videoID, suffix string) string {
	name := filepath.Base(videoID)
	if suffix != "" {
		name += "-" + suffix
	}
	return filepath.Join(s.dir, name+audioExt)
}

// NewScratchPath returns a fresh path so two jobs for the same video never
// share a file.
func (s *ScratchStore) NewScratchPath(videoID string) string {
	return s.PathFor(videoID, uuid.New().String())
}

// Remove deletes path along with any downloader leftovers sharing its stem
// (`.part` files, intermediate containers), logging instead of returning
// failures.
func (s *ScratchStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := s.remove(path); err != nil {
		entry := s.log.WithField("path", path).WithError(err)
		if errors.Is(err, os.ErrNotExist) {
			entry.Debug("scratch file already gone")
		} else {
			entry.Warn("failed to remove scratch file")
		}
	}

	leftovers, err := s.glob(strings.TrimSuffix(path, audioExt) + ".*")
	if err != nil {
		s.log.WithField("path", path).WithError(err).Warn("failed to list scratch leftovers")
		return
	}
	for _, name := range leftovers {
		if err := s.remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WithField("path", name).WithError(err).Warn("failed to remove scratch leftover")
		}
	}
}
