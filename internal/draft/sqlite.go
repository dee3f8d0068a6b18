package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
    session_id TEXT PRIMARY KEY,
    message TEXT NOT NULL DEFAULT '',
    file_ids TEXT NOT NULL DEFAULT '[]',
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// NewSQLiteStore opens (or creates) the drafts database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Draft, error) {
	var message, ids string
	err := s.db.QueryRowContext(ctx,
		"SELECT message, file_ids FROM drafts WHERE session_id = ?", sessionID).Scan(&message, &ids)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	d, err := scanDraft(message, ids)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sessionID string, d Draft) error {
	if d.Empty() {
		return s.Clear(ctx, sessionID)
	}
	d = normalize(d)
	ids, err := json.Marshal(d.FileIDs)
	if err != nil {
		return fmt.Errorf("marshal file ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (session_id, message, file_ids, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			message = excluded.message,
			file_ids = excluded.file_ids,
			updated_at = excluded.updated_at`,
		sessionID, d.Message, string(ids), time.Now())
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM drafts"); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) (map[string]Draft, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT session_id, message, file_ids FROM drafts ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Draft)
	for rows.Next() {
		var id, message, ids string
		if err := rows.Scan(&id, &message, &ids); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		d, err := scanDraft(message, ids)
		if err != nil {
			return nil, err
		}
		out[id] = d
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanDraft(message, ids string) (Draft, error) {
	d := Draft{Message: message, FileIDs: []string{}}
	if ids != "" {
		if err := json.Unmarshal([]byte(ids), &d.FileIDs); err != nil {
			return Draft{}, fmt.Errorf("decode file ids: %w", err)
		}
	}
	return d, nil
}
