package store

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/voice-notes/internal/model"
)

// Search finds notes where query is a case-insensitive substring of the
// title, category, transcription, summary, telegram handle, or any scalar
// value nested inside the metadata. Results come back in id order.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]model.Note, error) {
	if query == "" {
		return nil, model.ErrEmptyQuery
	}

	notes, err := s.query(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	return lo.Filter(notes, func(n model.Note, _ int) bool {
		return n.Matches(q)
	}), nil
}
