// Package config loads voice-notes settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. VOICE_NOTES_DB_PATH.
// Fields tagged with an explicit envconfig name are also read unprefixed,
// so a plain OPENAI_API_KEY works.
const Prefix = "VOICE_NOTES"

// Summary providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Summary models used when SUMMARY_MODEL is unset.
const (
	DefaultOpenAIModel = "gpt-4"
	DefaultOllamaModel = "llama3.2"
)

// Config holds runtime settings.
type Config struct {
	// Database file; empty means DefaultDBPath.
	DBPath string `envconfig:"DB_PATH"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	TranscribeModel string `envconfig:"TRANSCRIBE_MODEL" default:"whisper-1"`

	SummaryProvider string `envconfig:"SUMMARY_PROVIDER" default:"openai"`
	// Empty picks DefaultSummaryModel for the provider.
	SummaryModel       string  `envconfig:"SUMMARY_MODEL"`
	SummaryTemperature float64 `envconfig:"SUMMARY_TEMPERATURE" default:"0.2"`
	SummaryMaxTokens   int64   `envconfig:"SUMMARY_MAX_TOKENS" default:"1000"`

	OllamaHost string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`

	// Zero leaves the transport without a deadline.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads envFile (or ./.env when envFile is empty and the file exists)
// into the process environment without overriding variables already set,
// then parses the VOICE_NOTES_* variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = DefaultSummaryModel(cfg.SummaryProvider)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	return &cfg, nil
}

// DefaultSummaryModel is the model a provider is asked for when none is
// configured.
func DefaultSummaryModel(provider string) string {
	if provider == ProviderOllama {
		return DefaultOllamaModel
	}
	return DefaultOpenAIModel
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch c.SummaryProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unsupported SUMMARY_PROVIDER: %s", c.SummaryProvider)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT: %s", c.LogFormat)
	}
	if c.SummaryTemperature < 0 || c.SummaryTemperature > 2 {
		return fmt.Errorf("SUMMARY_TEMPERATURE out of range: %g", c.SummaryTemperature)
	}
	if c.SummaryMaxTokens <= 0 {
		return fmt.Errorf("SUMMARY_MAX_TOKENS must be positive: %d", c.SummaryMaxTokens)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative: %s", c.RequestTimeout)
	}
	return nil
}

// DefaultDBPath is ~/.voice-notes/notes.db. It returns "" when there is no
// home directory, which leaves the store unavailable.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".voice-notes", "notes.db")
}
