package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// AnalysisStore persists analyses in the Postgres "analyses" table. Ids come
// from BIGSERIAL; the archive serialises inserts.
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

// Insert appends one record in a transaction; it commits only when admit
// accepts the id Postgres assigned.
func (s *AnalysisStore) Insert(ctx context.Context, c domain.Candidate, createdAt time.Time, admit func(domain.ID) error) (domain.ID, error) {
	const q = `
INSERT INTO analyses
(file_name, file_type, file_size, duration,
 face_score, audio_score, metadata_score, overall_score,
 verdict, explanation, media_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id;
`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int64
	err = tx.QueryRowContext(ctx, q,
		c.FileName, c.FileType, c.FileSize, nullIfBlank(c.Duration),
		c.FaceScore, c.AudioScore, c.MetadataScore, c.OverallScore,
		string(c.Verdict), c.Explanation, c.MediaURL, createdAt.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
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
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id ASC;`)
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

// ByID returns one analysis or domain.ErrNotFound.
func (s *AnalysisStore) ByID(ctx context.Context, id domain.ID) (*domain.Analysis, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id=$1 LIMIT 1;`, int64(id))
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Last returns the analysis with the highest id.
func (s *AnalysisStore) Last(ctx context.Context) (*domain.Analysis, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` ORDER BY id DESC LIMIT 1;`)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (s *AnalysisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
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
		created  time.Time
	)
	if err := sc.Scan(
		&id, &a.FileName, &a.FileType, &a.FileSize, &duration,
		&a.FaceScore, &a.AudioScore, &a.MetadataScore, &a.OverallScore,
		&verdict, &a.Explanation, &a.MediaURL, &created,
	); err != nil {
		return nil, err
	}
	a.ID = domain.ID(id)
	a.Duration = stringPtr(duration)
	a.Verdict = domain.Verdict(verdict)
	a.CreatedAt = created.UTC()
	return &a, nil
}
