package nova

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TranscriptStore persists conversation turns to SQLite so a session
// survives process restarts and can be inspected after the fact.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore opens (creating if needed) the transcript database
// at path.
func NewTranscriptStore(path string) (*TranscriptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		goal       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS turns (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create transcript schema: %w", err)
	}

	return &TranscriptStore{db: db}, nil
}

// BeginSession records a new session and returns its ID.
func (s *TranscriptStore) BeginSession(goal string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, goal, created_at) VALUES (?, ?, ?)`,
		id, goal, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	return id, nil
}

// AppendTurn persists one turn at the end of a session.
func (s *TranscriptStore) AppendTurn(session string, t Turn) error {
	content, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		session, string(t.Role), string(content), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// DeleteLastTurn removes the most recently appended turn of a session.
// Deleting from an empty session is a no-op.
func (s *TranscriptStore) DeleteLastTurn(session string) error {
	_, err := s.db.Exec(
		`DELETE FROM turns WHERE id = (SELECT MAX(id) FROM turns WHERE session_id = ?)`,
		session,
	)
	if err != nil {
		return fmt.Errorf("delete last turn: %w", err)
	}
	return nil
}

// Turns returns a session's turns in append order.
func (s *TranscriptStore) Turns(session string) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT role, content FROM turns WHERE session_id = ? ORDER BY id`,
		session,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		var segments []Segment
		if err := json.Unmarshal([]byte(content), &segments); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, Turn{Role: Role(role), Segments: segments})
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}
