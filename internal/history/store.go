package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one recorded execution. Failed statements are kept too, with the
// server's message, so the history doubles as an error log.
type Entry struct {
	ID             int64     `json:"id"`
	ConnectionID   string    `json:"connectionId"`
	ConnectionName string    `json:"connectionName"`
	DatabaseName   string    `json:"databaseName"`
	Query          string    `json:"query"`
	ExecutedAt     time.Time `json:"executedAt"`
	DurationMS     int64     `json:"durationMs"`
	RowsAffected   int64     `json:"rowsAffected"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
}

// Store persists query history in SQLite. Recording stays the bridge's
// responsibility; the executor knows nothing about it.
type Store struct {
	db         *sql.DB
	maxEntries int
}

// NewStore opens (or creates) the history database at path. maxEntries <= 0
// disables pruning.
func NewStore(path string, maxEntries int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Add records one execution and prunes past the entry cap.
func (s *Store) Add(entry Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO query_history
		(connection_id, connection_name, database_name, query, duration_ms, rows_affected, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ConnectionID,
		entry.ConnectionName,
		entry.DatabaseName,
		entry.Query,
		entry.DurationMS,
		entry.RowsAffected,
		entry.Success,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("recording history entry: %w", err)
	}
	return s.prune()
}

func (s *Store) prune() error {
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM query_history
		WHERE id NOT IN (
			SELECT id FROM query_history ORDER BY id DESC LIMIT ?
		)`, s.maxEntries)
	return err
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, connection_id, connection_name, database_name, query,
		       executed_at, duration_ms, rows_affected, success, error_message
		FROM query_history
		ORDER BY id DESC
		LIMIT ?`, limit)
}

// Search returns entries whose query text contains q, newest first.
func (s *Store) Search(q string, limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, connection_id, connection_name, database_name, query,
		       executed_at, duration_ms, rows_affected, success, error_message
		FROM query_history
		WHERE query LIKE ?
		ORDER BY id DESC
		LIMIT ?`, "%"+q+"%", limit)
}

func (s *Store) query(stmt string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var executedAt string
		if err := rows.Scan(
			&e.ID,
			&e.ConnectionID,
			&e.ConnectionName,
			&e.DatabaseName,
			&e.Query,
			&executedAt,
			&e.DurationMS,
			&e.RowsAffected,
			&e.Success,
			&e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.ExecutedAt = parseSQLiteTime(executedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear wipes the whole history.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM query_history`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// parseSQLiteTime handles the formats CURRENT_TIMESTAMP may come back as.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
