// Package storage provides SQLite-based persistence for camera positions.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store manages the SQLite database connection for position persistence.
type Store struct {
	db *sql.DB
}

// Position is the saved camera of one content source.
type Position struct {
	Source    string
	X, Y      float64
	Zoom      float64
	UpdatedAt time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS positions (
			source TEXT PRIMARY KEY,
			x REAL NOT NULL,
			y REAL NOT NULL,
			zoom REAL NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePosition stores the camera for p.Source, replacing any earlier one.
func (s *Store) SavePosition(p Position) error {
	_, err := s.db.Exec(
		`INSERT INTO positions (source, x, y, zoom, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(source) DO UPDATE SET
		   x = excluded.x, y = excluded.y, zoom = excluded.zoom,
		   updated_at = excluded.updated_at`,
		p.Source, p.X, p.Y, p.Zoom,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save position: %w", err)
	}
	return nil
}

// LoadPosition returns the saved camera for source. The boolean is false
// when nothing was saved.
func (s *Store) LoadPosition(source string) (Position, bool, error) {
	var p Position
	var updatedAt any

	err := s.db.QueryRow(
		`SELECT source, x, y, zoom, updated_at FROM positions WHERE source = ?`,
		source,
	).Scan(&p.Source, &p.X, &p.Y, &p.Zoom, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("storage: cannot query position: %w", err)
	}

	p.UpdatedAt = parseTime(updatedAt)
	return p, true, nil
}

// Positions lists every saved camera, most recently updated first.
func (s *Store) Positions() ([]Position, error) {
	rows, err := s.db.Query(
		`SELECT source, x, y, zoom, updated_at
		 FROM positions
		 ORDER BY updated_at DESC, source`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		var updatedAt any
		if err := rows.Scan(&p.Source, &p.X, &p.Y, &p.Zoom, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		p.UpdatedAt = parseTime(updatedAt)
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return positions, nil
}

// ResetPosition deletes the saved camera for source.
func (s *Store) ResetPosition(source string) error {
	_, err := s.db.Exec("DELETE FROM positions WHERE source = ?", source)
	if err != nil {
		return fmt.Errorf("storage: cannot reset position: %w", err)
	}
	return nil
}

// ClearPositions deletes every saved camera.
func (s *Store) ClearPositions() error {
	if _, err := s.db.Exec("DELETE FROM positions"); err != nil {
		return fmt.Errorf("storage: cannot clear positions: %w", err)
	}
	return nil
}

// parseTime handles both time.Time and string datetimes from the driver.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
