// Package history persists edge-overlay snapshots per editing session in a
// SQLite database, giving hosts undo/redo and crash recovery without the
// engine itself holding history state.
package history

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a session or snapshot does not exist.
var ErrNotFound = errors.New("history: snapshot not found")

// Store writes and reads overlay snapshots. Snapshot PNG data is
// gzip-compressed before storage.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens a snapshot database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		CREATE INDEX IF NOT EXISTS snapshots_session ON snapshots (session_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Append stores a new snapshot for the session and returns its sequence
// number. Sequence numbers start at 1 and increase monotonically.
func (s *Store) Append(sessionID string, pngData []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	compressed, err := gzipCompress(pngData)
	if err != nil {
		return 0, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	var seq int
	err = tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE session_id = ?",
		sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO snapshots (session_id, seq, created_at, data) VALUES (?, ?, ?, ?)",
		sessionID, seq, time.Now().Unix(), compressed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return seq, nil
}

// Get returns the PNG data of one snapshot.
func (s *Store) Get(sessionID string, seq int) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(
		"SELECT data FROM snapshots WHERE session_id = ? AND seq = ?",
		sessionID, seq,
	).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return gzipDecompress(compressed)
}

// Latest returns the most recent snapshot PNG and its sequence number.
func (s *Store) Latest(sessionID string) ([]byte, int, error) {
	var (
		compressed []byte
		seq        int
	)
	err := s.db.QueryRow(
		"SELECT data, seq FROM snapshots WHERE session_id = ? ORDER BY seq DESC LIMIT 1",
		sessionID,
	).Scan(&compressed, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, 0, err
	}
	return data, seq, nil
}

// Sequences lists the stored snapshot sequence numbers for a session in
// ascending order.
func (s *Store) Sequences(sessionID string) ([]int, error) {
	rows, err := s.db.Query(
		"SELECT seq FROM snapshots WHERE session_id = ? ORDER BY seq ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var seqs []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("failed to scan sequence: %w", err)
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

// DeleteSession removes all snapshots belonging to a session.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM snapshots WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session snapshots: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot data: %w", err)
	}
	defer gr.Close() // nolint:errcheck

	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	return out, nil
}
