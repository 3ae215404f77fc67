// Package model defines the core note data types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Note is a persisted voice note: a transcript plus the title, category,
// summary and metadata derived from it.
type Note struct {
	ID             int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Title          string    `json:"title" yaml:"title"`
	Category       string    `json:"category" yaml:"category"`
	Summary        string    `json:"summary" yaml:"summary"`
	Transcription  string    `json:"transcription" yaml:"transcription"`
	Metadata       Mapping   `json:"metadata" yaml:"metadata"`
	Date           time.Time `json:"date" yaml:"date"`
	TelegramHandle string    `json:"telegramHandle,omitempty" yaml:"telegramHandle,omitempty"`
}

// Persisted reports whether the store has assigned the note an id.
func (n Note) Persisted() bool {
	return n.ID != 0
}

// Validate checks the text fields every persisted note must carry.
func (n Note) Validate() error {
	var missing []string
	if strings.TrimSpace(n.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(n.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(n.Summary) == "" {
		missing = append(missing, "summary")
	}
	if strings.TrimSpace(n.Transcription) == "" {
		missing = append(missing, "transcription")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidNote, strings.Join(missing, ", "))
	}
	return nil
}

// Matches reports whether q (already lower-cased) is a substring of any
// searchable field, including every scalar leaf inside the metadata.
func (n Note) Matches(q string) bool {
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Category), q) ||
		strings.Contains(strings.ToLower(n.Transcription), q) ||
		strings.Contains(strings.ToLower(n.Summary), q) ||
		(n.TelegramHandle != "" && strings.Contains(strings.ToLower(n.TelegramHandle), q)) ||
		n.Metadata.Contains(q)
}
