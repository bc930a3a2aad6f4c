package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const stderrTailLimit = 512

// commandResult is one finished process run.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// DownloadError describes a failed downloader run.
type DownloadError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Downloader drives the external yt-dlp binary.
type Downloader struct {
	path   string
	runner commandRunner
}

// NewDownloader creates a downloader that runs the binary at path.
func NewDownloader(path string) *Downloader {
	if path == "" {
		path = "yt-dlp"
	}
	return &Downloader{path: path, runner: &execRunner{}}
}

// Path returns the configured binary.
func (d *Downloader) Path() string {
	return d.path
}

// Available reports whether the binary can be found on PATH.
func (d *Downloader) Available() bool {
	_, err := exec.LookPath(d.path)
	return err == nil
}

// BuildDownloadArgs returns the fixed argument list for an audio-only mp3
// download of videoURL into outputPath.
func BuildDownloadArgs(videoURL, outputPath string) []string {
	return []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--output", outputPath,
		"--no-check-certificates",
		"--no-warnings",
		"--prefer-free-formats",
		"--add-header", "referer:youtube.com",
		"--add-header", "user-agent:Mozilla/5.0",
		videoURL,
	}
}

// Download fetches the audio track of videoURL into outputPath.
func (d *Downloader) Download(ctx context.Context, videoURL, outputPath string) error {
	result, err := d.runner.Run(ctx, d.path, BuildDownloadArgs(videoURL, outputPath)...)
	if err != nil {
		return &DownloadError{
			Command:  d.path,
			ExitCode: result.ExitCode,
			Stderr:   tail(result.Stderr, stderrTailLimit),
			Err:      err,
		}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
