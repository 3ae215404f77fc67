package capture

import (
	"fmt"
	"strings"

	"github.com/rcliao/voice-notes/internal/lenient"
	"github.com/rcliao/voice-notes/internal/model"
)

type summary struct {
	Title    string
	Category string
	Summary  string
	Metadata model.Mapping
}

// decodeSummary parses a model reply. Title, category and summary must be
// non-empty strings; metadata that is not a mapping becomes an empty one.
func decodeSummary(reply string) (summary, error) {
	v, err := lenient.ParseJSON(reply)
	if err != nil {
		return summary{}, err
	}

	obj := v.Mapping()
	var s summary
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"title", &s.Title},
		{"category", &s.Category},
		{"summary", &s.Summary},
	} {
		fv, ok := obj.Get(f.key)
		if !ok || fv.Kind() != model.KindString || strings.TrimSpace(fv.Str()) == "" {
			return summary{}, fmt.Errorf("field %q missing or not a non-empty string", f.key)
		}
		*f.dst = fv.Str()
	}

	if md, ok := obj.Get("metadata"); ok && md.Kind() == model.KindMapping {
		s.Metadata = md.Mapping()
	} else {
		s.Metadata = model.NewMapping()
	}
	return s, nil
}
