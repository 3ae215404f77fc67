// Package llm provides the remote transcription and summarization services.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rcliao/voice-notes/internal/config"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	// Transcribe uploads audio encoded as format (a file extension such as
	// "webm") and returns the transcript. Non-2xx replies are errors.
	Transcribe(ctx context.Context, audio io.Reader, format string) (string, error)
}

// Summarizer asks a chat model for the JSON summary of a transcript and
// returns the model's reply text untouched.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// SystemPrompt is the system message sent with every summary request.
const SystemPrompt = "You are an assistant that generates summaries and metadata from transcriptions."

// SummaryInstruction precedes the transcript in the user message.
const SummaryInstruction = `Based on the following transcription, generate a JSON object with the following structure:
{
  "title": "<A concise title>",
  "category": "<A category that fits the content>",
  "summary": "<A 2-paragraph summary>",
  "metadata": <a dictionary containing metadata from the transcription>
}
Metadata should include important information such as places, company names, project names, social media handles, ages, etc., extracted from the transcription.

**Important**: Provide *only* the JSON object as the output. Do not include any explanations, comments, or code block formatting.`

// BuildPrompt returns the user message for a transcript.
func BuildPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SummaryInstruction)
	b.WriteString("\n\nTranscription:\n\"\"\"")
	b.WriteString(transcript)
	b.WriteString("\"\"\"\n")
	return b.String()
}

// StatusError is a non-2xx reply from a remote service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s error %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s error %d: %s", e.Service, e.StatusCode, e.Body)
}

// NewFromConfig builds the transcriber and summarizer selected by cfg.
// Transcription always goes to the OpenAI-compatible endpoint.
func NewFromConfig(cfg *config.Config) (Transcriber, Summarizer, error) {
	var hc *http.Client
	if cfg.RequestTimeout > 0 {
		hc = &http.Client{Timeout: cfg.RequestTimeout}
	}

	oc := newOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, hc)
	t := NewOpenAITranscriber(oc, cfg.TranscribeModel)

	switch cfg.SummaryProvider {
	case config.ProviderOpenAI:
		return t, NewOpenAISummarizer(oc, SummaryOptions{
			Model:       cfg.SummaryModel,
			Temperature: cfg.SummaryTemperature,
			MaxTokens:   cfg.SummaryMaxTokens,
		}), nil
	case config.ProviderOllama:
		return t, NewOllamaSummarizer(cfg.OllamaHost, SummaryOptions{
			Model:       cfg.SummaryModel,
			Temperature: cfg.SummaryTemperature,
			MaxTokens:   cfg.SummaryMaxTokens,
		}, cfg.RequestTimeout), nil
	default:
		return nil, nil, fmt.Errorf("unsupported summary provider %q", cfg.SummaryProvider)
	}
}

// SummaryOptions are the chat parameters of a summary request.
type SummaryOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int64
}

func (o SummaryOptions) withDefaults() SummaryOptions {
	if o.Model == "" {
		o.Model = config.DefaultOpenAIModel
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 1000
	}
	return o
}
