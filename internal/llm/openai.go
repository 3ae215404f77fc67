package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func newOpenAIClient(baseURL, apiKey string, hc *http.Client) openai.Client {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return openai.NewClient(opts...)
}

// NewOpenAIClient returns a client for an OpenAI-compatible API with retries
// disabled. Empty baseURL and apiKey fall back to the SDK defaults.
func NewOpenAIClient(baseURL, apiKey string) openai.Client {
	return newOpenAIClient(baseURL, apiKey, nil)
}

// OpenAITranscriber uses the audio transcription endpoint.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber. Default model: whisper-1.
func NewOpenAITranscriber(client openai.Client, model string) *OpenAITranscriber {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &OpenAITranscriber{client: client, model: model}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio io.Reader, format string) (string, error) {
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, "audio."+format, mimeForFormat(format)),
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return "", openAIError("transcription", err)
	}
	return resp.Text, nil
}

// OpenAISummarizer uses the chat completions endpoint.
type OpenAISummarizer struct {
	client openai.Client
	opts   SummaryOptions
}

// NewOpenAISummarizer creates a summarizer. Defaults: gpt-4, 1000 tokens.
func NewOpenAISummarizer(client openai.Client, opts SummaryOptions) *OpenAISummarizer {
	return &OpenAISummarizer{client: client, opts: opts.withDefaults()}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(BuildPrompt(transcript)),
		},
		Temperature: openai.Float(s.opts.Temperature),
		MaxTokens:   openai.Int(s.opts.MaxTokens),
	})
	if err != nil {
		return "", openAIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func openAIError(service string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Service: service, StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	}
	return fmt.Errorf("%s request failed: %w", service, err)
}

func mimeForFormat(format string) string {
	switch format {
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	case "mp4":
		return "audio/mp4"
	case "wav":
		return "audio/wav"
	case "mpeg", "mpga", "mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
