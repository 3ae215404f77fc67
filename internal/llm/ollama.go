package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rcliao/voice-notes/internal/config"
)

// OllamaSummarizer uses a local Ollama instance's chat API.
type OllamaSummarizer struct {
	client *resty.Client
	opts   SummaryOptions
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int64   `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// NewOllamaSummarizer creates a summarizer for the Ollama at baseURL
// (default http://localhost:11434). A zero timeout means none.
func NewOllamaSummarizer(baseURL string, opts SummaryOptions, timeout time.Duration) *OllamaSummarizer {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}

	if opts.Model == "" {
		opts.Model = config.DefaultOllamaModel
	}
	return &OllamaSummarizer{client: c, opts: opts.withDefaults()}
}

func (s *OllamaSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: s.opts.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildPrompt(transcript)},
		},
		Options: ollamaOptions{Temperature: s.opts.Temperature, NumPredict: s.opts.MaxTokens},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&reqBody).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{Service: "ollama", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}
