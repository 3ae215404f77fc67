// Package store provides the note storage interface and SQLite implementation.
package store

import (
	"context"

	"github.com/rcliao/voice-notes/internal/model"
)

// Store defines the note storage interface.
type Store interface {
	// Add inserts a new note and returns its assigned id. The note must not
	// already carry an id.
	Add(ctx context.Context, note model.Note) (int64, error)

	// ListAll returns every note ordered by date ascending.
	ListAll(ctx context.Context) ([]model.Note, error)

	// Get retrieves a note by id.
	Get(ctx context.Context, id int64) (*model.Note, error)

	// Update replaces the stored record with the same id. It never creates
	// a record and never rewrites the date.
	Update(ctx context.Context, note model.Note) error

	// Search returns notes matching a non-empty, case-insensitive query.
	Search(ctx context.Context, query string) ([]model.Note, error)

	// Close closes the store.
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
