package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Connect opens a pooled Postgres handle and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
  id             BIGSERIAL   PRIMARY KEY,
  file_name      TEXT        NOT NULL,
  file_type      TEXT        NOT NULL,
  file_size      BIGINT      NOT NULL CHECK (file_size > 0),
  duration       TEXT        NULL,
  face_score     INTEGER     NOT NULL CHECK (face_score BETWEEN 0 AND 100),
  audio_score    INTEGER     NOT NULL CHECK (audio_score BETWEEN 0 AND 100),
  metadata_score INTEGER     NOT NULL CHECK (metadata_score BETWEEN 0 AND 100),
  overall_score  INTEGER     NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
  verdict        TEXT        NOT NULL,
  explanation    TEXT        NOT NULL,
  media_url      TEXT        NOT NULL DEFAULT '',
  created_at     TIMESTAMPTZ NOT NULL
);`

// Migrate creates the analyses table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate analyses: %w", err)
	}
	return nil
}
