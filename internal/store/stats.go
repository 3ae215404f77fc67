package store

import (
	"context"
	"database/sql"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string          `json:"db_path"`
	DBSizeBytes int64           `json:"db_size_bytes"`
	TotalNotes  int             `json:"total_notes"`
	WithHandle  int             `json:"with_telegram_handle"`
	Oldest      *time.Time      `json:"oldest,omitempty"`
	Newest      *time.Time      `json:"newest,omitempty"`
	Categories  []CategoryStats `json:"categories"`
}

// CategoryStats holds per-category counts.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	st := &Stats{DBPath: s.path, Categories: []CategoryStats{}}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	var oldest, newest sql.NullInt64
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(telegram_handle), MIN(date), MAX(date) FROM notes`).
		Scan(&st.TotalNotes, &st.WithHandle, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64).UTC()
		st.Oldest = &t
	}
	if newest.Valid {
		t := time.Unix(0, newest.Int64).UTC()
		st.Newest = &t
	}

	rows, err := db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS cnt
		FROM notes
		GROUP BY category ORDER BY cnt DESC, category ASC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var c CategoryStats
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return st, err
		}
		st.Categories = append(st.Categories, c)
	}

	return st, rows.Err()
}
