// Package logging provides a configured zerolog logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Service is attached to every log line.
const Service = "voice-notes"

// New returns a logger writing to w. format is "json" or "console"; an
// unknown level falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(lvl).With().
		Str("service", Service).
		Timestamp().
		Logger()
}
