// Package lenient recovers a JSON object from free-form language model
// replies: prose around the object, code fences, stray escapes, literal
// newlines and trailing commas.
package lenient

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rcliao/voice-notes/internal/model"
)

var (
	// ErrNoObject means the text contains no {...} span at all.
	ErrNoObject = errors.New("no JSON object found")
	// ErrInvalid means a span was found but could not be repaired.
	ErrInvalid = errors.New("invalid JSON after cleanup")
)

// ParseError carries the raw reply so callers can log what the model said.
type ParseError struct {
	Raw     string
	Cleaned string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("lenient json: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// ParseJSON extracts, repairs and parses the first JSON object in text.
func ParseJSON(text string) (model.Value, error) {
	span, ok := Extract(text)
	if !ok {
		return model.Value{}, &ParseError{Raw: text, Err: ErrNoObject}
	}

	cleaned := Clean(span)
	if gjson.Valid(cleaned) {
		return model.FromJSON(gjson.Parse(cleaned)), nil
	}

	// Replies that were JSON-encoded twice arrive as {\"title\": ...}.
	if strings.Contains(cleaned, `\"`) {
		unquoted := Clean(strings.ReplaceAll(span, `\"`, `"`))
		if gjson.Valid(unquoted) {
			return model.FromJSON(gjson.Parse(unquoted)), nil
		}
	}

	return model.Value{}, &ParseError{Raw: text, Cleaned: cleaned, Err: ErrInvalid}
}

// Extract returns the first top-level {...} span. Braces inside string
// literals are ignored. An unbalanced span falls back to everything from the
// first '{' through the last '}'.
func Extract(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(text, '}')
	if end < start {
		return "", false
	}
	return text[start : end+1], true
}

// Clean applies the repair heuristics: escaped control sequences (\n \r \t
// \b \f) are dropped, \' and \& are unescaped, literal line breaks are
// removed, and commas directly before a closing bracket are deleted.
// Other escapes, including \\ and \", are kept intact.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\n', '\r':
			continue
		case '\\':
			if i+1 >= len(s) {
				b.WriteByte(c)
				continue
			}
			switch next := s[i+1]; next {
			case 'n', 'r', 't', 'b', 'f':
				i++
				continue
			case '\'', '&':
				b.WriteByte(next)
				i++
				continue
			default:
				b.WriteByte(c)
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return trailingComma.ReplaceAllString(b.String(), "$1")
}
