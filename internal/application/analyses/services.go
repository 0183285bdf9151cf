package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// Service implements use-cases untuk Analysis.
// It is safe for concurrent use; the Archive is the only shared mutable state.
type Service struct {
	Detectors map[domain.Role]domain.Detector
	Archive   domain.Archive
	Media     domain.MediaStore // optional
	Notifier  domain.Notifier   // optional

	// DetectorTimeout bounds each detector call; zero means no extra bound.
	DetectorTimeout time.Duration
	Rules           domain.MediaRules
	Logger          *slog.Logger
}

// detectors always run in this order so errors and logs are stable
var roles = []domain.Role{domain.RoleFace, domain.RoleAudio, domain.RoleMetadata}

//
// ==== USE CASES ====
//

// AnalyzeCommand carries one upload into the pipeline.
type AnalyzeCommand struct {
	Media domain.MediaDescriptor
	// Body is the full file content, only read when a MediaStore is configured.
	Body     io.Reader
	Duration *string
}

// Analyze runs validate → score → aggregate → persist. Either a complete
// Analysis is archived and returned, or nothing is stored and an error is
// returned.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.Analysis, error) {
	log := s.logger().With(slog.String("file", cmd.Media.FileName))

	if err := domain.ValidateMedia(cmd.Media, s.Rules); err != nil {
		analysisFailures.WithLabelValues(stageValidate).Inc()
		log.Info("upload rejected", slog.String("error", err.Error()))
		return nil, err
	}

	vec, err := s.score(ctx, cmd.Media)
	if ctxErr := ctx.Err(); ctxErr != nil {
		analysisFailures.WithLabelValues(stageCancelled).Inc()
		log.Warn("analysis cancelled", slog.String("error", ctxErr.Error()))
		return nil, ctxErr
	}
	if err != nil {
		analysisFailures.WithLabelValues(stageDetect).Inc()
		log.Error("detector failed", slog.String("error", err.Error()))
		return nil, err
	}

	agg, err := domain.Aggregate(vec)
	if err != nil {
		analysisFailures.WithLabelValues(stageAggregate).Inc()
		log.Error("aggregation failed", slog.String("error", err.Error()))
		return nil, err
	}
	cand := domain.NewCandidate(cmd.Media, agg, cmd.Duration)

	var key string
	if s.Media != nil && cmd.Body != nil {
		key = mediaKey(cmd.Media.FileName)
		url, err := s.Media.Put(ctx, key, cmd.Body, cmd.Media.FileSize, cmd.Media.FileType)
		if err != nil {
			analysisFailures.WithLabelValues(stageUpload).Inc()
			log.Error("media upload failed", slog.String("key", key), slog.String("error", err.Error()))
			return nil, &domain.ArchiveError{Op: "upload", Err: err}
		}
		cand.MediaURL = url
	}

	a, err := s.Archive.Create(ctx, cand)
	if err != nil {
		analysisFailures.WithLabelValues(stagePersist).Inc()
		log.Error("archive create failed", slog.String("error", err.Error()))
		if key != "" {
			// jangan tinggalkan object tanpa record
			if rerr := s.Media.Remove(context.WithoutCancel(ctx), key); rerr != nil {
				log.Warn("media cleanup failed", slog.String("key", key), slog.String("error", rerr.Error()))
			}
		}
		return nil, err
	}

	analysesTotal.WithLabelValues(string(a.Verdict)).Inc()
	log.Info("analysis archived",
		slog.Int64("id", int64(a.ID)),
		slog.Int("overall", a.OverallScore),
		slog.String("verdict", string(a.Verdict)),
	)
	s.notify(ctx, a)
	return a, nil
}

// score fans out to every detector and waits for all of them. The first
// failure cancels the others.
func (s *Service) score(ctx context.Context, m domain.MediaDescriptor) (domain.ScoreVector, error) {
	var vec domain.ScoreVector
	slots := map[domain.Role]**int{
		domain.RoleFace:     &vec.Face,
		domain.RoleAudio:    &vec.Audio,
		domain.RoleMetadata: &vec.Metadata,
	}

	// semua role harus ada sebelum goroutine pertama jalan
	for _, role := range roles {
		if s.Detectors[role] == nil {
			return vec, &domain.DetectorError{Detector: string(role), Err: errors.New("no detector configured")}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, role := range roles {
		det, slot := s.Detectors[role], slots[role]
		g.Go(func() error {
			v, err := s.runDetector(gctx, det, m)
			if err != nil {
				return err
			}
			*slot = &v
			return nil
		})
	}
	err := g.Wait()
	return vec, err
}

func (s *Service) runDetector(ctx context.Context, det domain.Detector, m domain.MediaDescriptor) (int, error) {
	if s.DetectorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.DetectorTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := det.Score(ctx, m)
	detectorDuration.WithLabelValues(det.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		var de *domain.DetectorError
		if errors.As(err, &de) {
			return 0, err
		}
		return 0, &domain.DetectorError{Detector: det.Name(), Err: err}
	}
	return v, nil
}

func (s *Service) notify(ctx context.Context, a *domain.Analysis) {
	if s.Notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Notifier.AnalysisCreated(nctx, a); err != nil {
		notifyFailures.Inc()
		s.logger().Warn("notify failed", slog.Int64("id", int64(a.ID)), slog.String("error", err.Error()))
	}
}

// List returns every archived analysis, ascending id.
func (s *Service) List(ctx context.Context) ([]*domain.Analysis, error) {
	return s.Archive.List(ctx)
}

// Recent ambil N analysis terakhir, newest first. limit <= 0 means all.
func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	all, err := s.Archive.List(ctx)
	if err != nil {
		return nil, err
	}
	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*domain.Analysis, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Get ambil 1 analysis by id
func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.Analysis, error) {
	return s.Archive.Get(ctx, id)
}

// Summary rekap jumlah analysis per verdict
func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	all, err := s.Archive.List(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	sum := domain.Summary{
		Total: len(all),
		ByVerdict: map[domain.Verdict]int{
			domain.VerdictVerifiedContent:  0,
			domain.VerdictSuspicious:       0,
			domain.VerdictPossibleDeepfake: 0,
		},
	}
	if len(all) == 0 {
		return sum, nil
	}
	total := 0
	for _, a := range all {
		sum.ByVerdict[a.Verdict]++
		total += a.OverallScore
	}
	sum.AverageScore = math.Round(float64(total)/float64(len(all))*100) / 100
	return sum, nil
}

// Demo record inserted by Seed.
const (
	DemoFileName = "demo_video.mp4"
	DemoFileType = "video/mp4"
	DemoFileSize = int64(5 << 20)
	DemoDuration = "00:30"

	demoExplanation = "Demo record: High consistency across all checks."
)

// Seed archives the demo record when the archive is empty. It returns nil,
// nil when there was already data.
func (s *Service) Seed(ctx context.Context) (*domain.Analysis, error) {
	existing, err := s.Archive.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}
	agg, err := domain.Aggregate(domain.Scores{Face: 95, Audio: 92, Metadata: 88}.Vector())
	if err != nil {
		return nil, err
	}
	duration := DemoDuration
	cand := domain.NewCandidate(domain.MediaDescriptor{
		FileName: DemoFileName,
		FileType: DemoFileType,
		FileSize: DemoFileSize,
	}, agg, &duration)
	cand.Explanation = demoExplanation
	a, err := s.Archive.Create(ctx, cand)
	if err != nil {
		return nil, fmt.Errorf("seed demo analysis: %w", err)
	}
	s.logger().Info("demo analysis seeded", slog.Int64("id", int64(a.ID)))
	return a, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// helper
func mediaKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if clean == "" || clean == "." || clean == ".." {
		clean = "upload"
	}
	return fmt.Sprintf("media/%s/%s", uuid.NewString(), clean)
}
