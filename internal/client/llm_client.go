package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/config"
)

// LLMClient talks to an OpenAI-compatible chat completions endpoint
type LLMClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// CompletionOptions tunes one completion call.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// NewLLMClient creates a new chat completions client
func NewLLMClient(cfg *config.OpenAIConfig) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// ChatCompletion sends one system+user exchange and returns the first choice.
// An empty string with a nil error means the model answered with no content.
func (c *LLMClient) ChatCompletion(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	if !c.IsConfigured() {
		return "", apperr.NotConfigured("OPENAI_API_KEY")
	}

	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", upstreamError(resp.StatusCode, respBody)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", nil
	}

	return chatResp.Choices[0].Message.Content, nil
}

func upstreamError(status int, body []byte) error {
	cause := fmt.Errorf("openai API error (status %d): %s", status, string(body))

	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Error.Code == "insufficient_quota" || apiErr.Error.Type == "insufficient_quota" {
			return apperr.New(apperr.ErrQuotaExceeded, "OpenAI API quota exceeded", cause)
		}
	}
	if bytes.Contains(body, []byte("insufficient_quota")) {
		return apperr.New(apperr.ErrQuotaExceeded, "OpenAI API quota exceeded", cause)
	}
	return cause
}

// IsConfigured returns true if the client has valid configuration
func (c *LLMClient) IsConfigured() bool {
	return c.apiKey != ""
}
