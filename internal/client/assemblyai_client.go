package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/config"
	"github.com/recipecast/api/internal/model"
)

// AssemblyAIClient handles communication with the AssemblyAI transcription API
type AssemblyAIClient struct {
	httpClient   *http.Client
	uploadClient *http.Client
	baseURL      string
	apiKey       string
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageDetection bool   `json:"language_detection"`
}

type transcriptResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Text   *string `json:"text"`
	Error  string  `json:"error"`
}

// NewAssemblyAIClient creates a new AssemblyAI client
func NewAssemblyAIClient(cfg *config.AssemblyAIConfig) *AssemblyAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	// Uploads stream whole audio files, so only the wait for the response
	// is bounded there.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &AssemblyAIClient{
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Transport: transport},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
	}
}

// IsConfigured returns true if the client has an API key
func (c *AssemblyAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Submit uploads the audio file and starts a transcript for it.
func (c *AssemblyAIClient) Submit(ctx context.Context, audioPath string) (string, error) {
	if !c.IsConfigured() {
		return "", apperr.NotConfigured("ASSEMBLY_AI_API_KEY")
	}

	uploadURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return "", apperr.New(apperr.ErrUploadFailed, "", err)
	}

	id, err := c.createTranscript(ctx, uploadURL)
	if err != nil {
		return "", apperr.New(apperr.ErrSubmissionFailed, "", err)
	}
	return id, nil
}

func (c *AssemblyAIClient) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", f)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	// Unknown length makes net/http send the body chunked
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", c.apiKey)

	var out uploadResponse
	if err := c.do(c.uploadClient, req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

func (c *AssemblyAIClient) createTranscript(ctx context.Context, audioURL string) (string, error) {
	bodyBytes, err := json.Marshal(transcriptRequest{AudioURL: audioURL, LanguageDetection: true})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	var out transcriptResponse
	if err := c.do(c.httpClient, req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("transcript response missing id")
	}
	return out.ID, nil
}

// Poll fetches the current state of a transcript.
func (c *AssemblyAIClient) Poll(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	if !c.IsConfigured() {
		return nil, apperr.NotConfigured("ASSEMBLY_AI_API_KEY")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, apperr.New(apperr.ErrStatusCheckFailed, "Failed to check transcription status", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	var out transcriptResponse
	if err := c.do(c.httpClient, req, &out); err != nil {
		return nil, apperr.New(apperr.ErrStatusCheckFailed, "Failed to check transcription status", err)
	}

	job := &model.TranscriptionJob{
		ID:     jobID,
		Status: model.TranscriptionStatus(out.Status),
		Error:  out.Error,
	}
	if job.Status == model.StatusCompleted && out.Text != nil {
		job.Text = *out.Text
	}
	return job, nil
}

func (c *AssemblyAIClient) do(httpClient *http.Client, req *http.Request, out interface{}) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("assemblyai API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
