package store

import (
	"context"
	"fmt"

	"github.com/rcliao/voice-notes/internal/model"
)

// ExportAll returns every note, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Note, error) {
	return s.ListAll(ctx)
}

// Import adds notes from an export. Ids are reassigned; dates are kept.
// Importing the same export twice creates duplicates.
func (s *SQLiteStore) Import(ctx context.Context, notes []model.Note) (int, error) {
	imported := 0
	for _, n := range notes {
		n.ID = 0
		if _, err := s.Add(ctx, n); err != nil {
			return imported, fmt.Errorf("import note %q: %w", n.Title, err)
		}
		imported++
	}
	return imported, nil
}
