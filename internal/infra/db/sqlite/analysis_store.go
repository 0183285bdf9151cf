package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// AnalysisStore keeps analyses in a single SQLite file. AUTOINCREMENT
// guarantees ids are never reused, even after the newest row is gone.
type AnalysisStore struct {
	db *sql.DB
}

func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

const selectColumns = `
SELECT id, file_name, file_type, file_size, duration,
       face_score, audio_score, metadata_score, overall_score,
       verdict, explanation, media_url, created_at
FROM analyses`

// Insert appends one record. Timestamps are stored as RFC3339Nano text.
// The transaction is rolled back, sequence included, when admit refuses.
func (s *AnalysisStore) Insert(ctx context.Context, c domain.Candidate, createdAt time.Time, admit func(domain.ID) error) (domain.ID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO analyses
(file_name, file_type, file_size, duration,
 face_score, audio_score, metadata_score, overall_score,
 verdict, explanation, media_url, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.FileName, c.FileType, c.FileSize, nullIfBlank(c.Duration),
		c.FaceScore, c.AudioScore, c.MetadataScore, c.OverallScore,
		string(c.Verdict), c.Explanation, c.MediaURL,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	id := domain.ID(n)
	if admit != nil {
		if err := admit(id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit analysis: %w", err)
	}
	return id, nil
}

// All returns every analysis ordered by id ascending.
func (s *AnalysisStore) All(ctx context.Context) ([]*domain.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AnalysisStore) ByID(ctx context.Context, id domain.ID) (*domain.Analysis, error) {
	return s.one(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? LIMIT 1`, int64(id)))
}

func (s *AnalysisStore) Last(ctx context.Context) (*domain.Analysis, error) {
	return s.one(s.db.QueryRowContext(ctx, selectColumns+` ORDER BY id DESC LIMIT 1`))
}

func (s *AnalysisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *AnalysisStore) one(row *sql.Row) (*domain.Analysis, error) {
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(sc scanner) (*domain.Analysis, error) {
	var (
		a        domain.Analysis
		id       int64
		duration sql.NullString
		verdict  string
		created  string
	)
	if err := sc.Scan(
		&id, &a.FileName, &a.FileType, &a.FileSize, &duration,
		&a.FaceScore, &a.AudioScore, &a.MetadataScore, &a.OverallScore,
		&verdict, &a.Explanation, &a.MediaURL, &created,
	); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of analysis %d: %w", id, err)
	}
	a.ID = domain.ID(id)
	if duration.Valid {
		d := duration.String
		a.Duration = &d
	}
	a.Verdict = domain.Verdict(verdict)
	a.CreatedAt = ts.UTC()
	return &a, nil
}

func nullIfBlank(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
