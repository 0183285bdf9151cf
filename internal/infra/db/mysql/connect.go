package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Connect opens a pooled MySQL handle and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
  id             BIGINT       NOT NULL AUTO_INCREMENT,
  file_name      VARCHAR(512) NOT NULL,
  file_type      VARCHAR(255) NOT NULL,
  file_size      BIGINT       NOT NULL,
  duration       VARCHAR(32)  NULL,
  face_score     SMALLINT     NOT NULL,
  audio_score    SMALLINT     NOT NULL,
  metadata_score SMALLINT     NOT NULL,
  overall_score  SMALLINT     NOT NULL,
  verdict        VARCHAR(32)  NOT NULL,
  explanation    TEXT         NOT NULL,
  media_url      VARCHAR(1024) NOT NULL DEFAULT '',
  created_at     DATETIME(6)  NOT NULL,
  PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// Migrate creates the analyses table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate analyses: %w", err)
	}
	return nil
}
