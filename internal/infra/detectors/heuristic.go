package detectors

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// Penalties applied by the metadata heuristic, in score points.
const (
	penaltyNoHeader       = 30
	penaltyUnknownHeader  = 15
	penaltyFamilyMismatch = 35
	penaltyTypeMismatch   = 10
	penaltyNoExtension    = 10
	penaltyExtMismatch    = 20
)

// Heuristic scores metadata integrity from the declared MIME type, the
// file extension and the sniffed container header. It is deterministic.
type Heuristic struct{}

func (Heuristic) Name() string { return "metadata-heuristic" }

func (h Heuristic) Score(ctx context.Context, d domain.MediaDescriptor) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	declared := baseType(d.FileType)
	score := domain.MaxScore

	switch {
	case len(d.Header) == 0:
		score -= penaltyNoHeader
	case allZero(d.Header):
		return 0, &domain.DetectorError{Detector: h.Name(), Err: errors.New("corrupt container: header is blank"), Validation: true}
	default:
		sniffed := baseType(d.SniffedType())
		switch {
		case strings.HasPrefix(sniffed, "text/"):
			return 0, &domain.DetectorError{Detector: h.Name(), Err: errors.New("corrupt container: header is text"), Validation: true}
		case sniffed == "application/octet-stream":
			score -= penaltyUnknownHeader
		case family(sniffed) != family(declared):
			score -= penaltyFamilyMismatch
		case sniffed != declared:
			score -= penaltyTypeMismatch
		}
	}

	ext := strings.ToLower(filepath.Ext(d.FileName))
	if ext == "" {
		score -= penaltyNoExtension
	} else if byExt := baseType(mime.TypeByExtension(ext)); byExt != "" && family(byExt) != family(declared) {
		score -= penaltyExtMismatch
	}

	if score < domain.MinScore {
		score = domain.MinScore
	}
	return score, nil
}

func family(t string) string {
	if i := strings.IndexByte(t, '/'); i >= 0 {
		return t[:i]
	}
	return t
}

func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

func allZero(b []byte) bool {
	return len(bytes.Trim(b, "\x00")) == 0
}
