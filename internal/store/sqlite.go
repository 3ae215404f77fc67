package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/voice-notes/internal/model"
)

// Dates are stored as Unix nanoseconds, which bounds them to roughly
// 1678 through 2262.
var (
	minDate = time.Unix(0, math.MinInt64)
	maxDate = time.Unix(0, math.MaxInt64)
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path. An empty path
// means there is no persistent location (headless use) and fails with
// model.ErrStoreUnavailable.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: no database path", model.ErrStoreUnavailable)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db dir: %v", model.ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(full)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Writers are serialized on a single connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		title           TEXT NOT NULL,
		category        TEXT NOT NULL,
		summary         TEXT NOT NULL,
		transcription   TEXT NOT NULL,
		metadata        TEXT NOT NULL DEFAULT '{}',
		date            INTEGER NOT NULL,
		telegram_handle TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_notes_date ON notes(date);
	CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("%w: store is closed", model.ErrStoreUnavailable)
	}
	return s.db, nil
}

func (s *SQLiteStore) Add(ctx context.Context, n model.Note) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	if n.Persisted() {
		return 0, fmt.Errorf("%w: id %d", model.ErrAlreadyPersisted, n.ID)
	}
	if err := n.Validate(); err != nil {
		return 0, err
	}
	if n.Date.IsZero() {
		return 0, fmt.Errorf("%w: missing date", model.ErrInvalidNote)
	}
	if n.Date.Before(minDate) || n.Date.After(maxDate) {
		return 0, fmt.Errorf("%w: date %s out of range", model.ErrInvalidNote, n.Date.Format(time.RFC3339))
	}

	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO notes (title, category, summary, transcription, metadata, date, telegram_handle)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.Title, n.Category, n.Summary, n.Transcription, string(meta),
		n.Date.UnixNano(), nullString(n.TelegramHandle))
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]model.Note, error) {
	return s.query(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY date ASC, id ASC`)
}

// ListByCategory returns the notes in one category, ordered by date ascending.
func (s *SQLiteStore) ListByCategory(ctx context.Context, category string) ([]model.Note, error) {
	return s.query(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE category = ? COLLATE NOCASE ORDER BY date ASC, id ASC`,
		category)
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Note, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get note %d: %w", id, err)
	}
	return &n, nil
}

func (s *SQLiteStore) Update(ctx context.Context, n model.Note) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if !n.Persisted() {
		return fmt.Errorf("%w: note has no id", model.ErrNotFound)
	}
	if err := n.Validate(); err != nil {
		return err
	}

	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE notes SET title = ?, category = ?, summary = ?, transcription = ?,
		        metadata = ?, telegram_handle = ?
		 WHERE id = ?`,
		n.Title, n.Category, n.Summary, n.Transcription, string(meta),
		nullString(n.TelegramHandle), n.ID)
	if err != nil {
		return fmt.Errorf("update note %d: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note %d: %w", n.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", model.ErrNotFound, n.ID)
	}
	return nil
}

// SetTelegramHandle sets or clears the telegram handle of an existing note
// and returns the updated record.
func (s *SQLiteStore) SetTelegramHandle(ctx context.Context, id int64, handle string) (*model.Note, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n.TelegramHandle = strings.TrimSpace(handle)
	if err := s.Update(ctx, *n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

const noteColumns = `id, title, category, summary, transcription, metadata, date, telegram_handle`

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]model.Note, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row scanner) (model.Note, error) {
	var n model.Note
	var meta string
	var date int64
	var handle sql.NullString

	err := row.Scan(&n.ID, &n.Title, &n.Category, &n.Summary, &n.Transcription,
		&meta, &date, &handle)
	if err != nil {
		return n, err
	}

	if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
		return n, fmt.Errorf("decode metadata of note %d: %w", n.ID, err)
	}
	n.Date = time.Unix(0, date).UTC()
	if handle.Valid {
		n.TelegramHandle = handle.String
	}
	return n, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
