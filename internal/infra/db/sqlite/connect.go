package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// Connect opens (or creates) the database file at path.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// satu writer saja
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  file_name      TEXT    NOT NULL,
  file_type      TEXT    NOT NULL,
  file_size      INTEGER NOT NULL CHECK (file_size > 0),
  duration       TEXT    NULL,
  face_score     INTEGER NOT NULL CHECK (face_score BETWEEN 0 AND 100),
  audio_score    INTEGER NOT NULL CHECK (audio_score BETWEEN 0 AND 100),
  metadata_score INTEGER NOT NULL CHECK (metadata_score BETWEEN 0 AND 100),
  overall_score  INTEGER NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
  verdict        TEXT    NOT NULL,
  explanation    TEXT    NOT NULL,
  media_url      TEXT    NOT NULL DEFAULT '',
  created_at     TEXT    NOT NULL
);`

// Migrate creates the analyses table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate analyses: %w", err)
	}
	return nil
}
