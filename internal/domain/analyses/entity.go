package analyses

import (
	"time"
)

// ID tipe untuk Analysis
type ID int64

// Verdict enum
type Verdict string

const (
	VerdictVerifiedContent  Verdict = "Verified Content"
	VerdictSuspicious       Verdict = "Suspicious"
	VerdictPossibleDeepfake Verdict = "Possible Deepfake"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictVerifiedContent, VerdictSuspicious, VerdictPossibleDeepfake:
		return true
	}
	return false
}

// Candidate is a completed scoring run that has not been archived yet.
// It carries everything an Analysis does except identity and timestamp.
type Candidate struct {
	FileName      string
	FileType      string
	FileSize      int64
	Duration      *string
	FaceScore     int
	AudioScore    int
	MetadataScore int
	OverallScore  int
	Verdict       Verdict
	Explanation   string
	MediaURL      string
}

// Aggregate Root: Analysis
type Analysis struct {
	ID            ID        `json:"id"`
	FileName      string    `json:"fileName"`
	FileType      string    `json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	Duration      *string   `json:"duration"`
	FaceScore     int       `json:"faceScore"`
	AudioScore    int       `json:"audioScore"`
	MetadataScore int       `json:"metadataScore"`
	OverallScore  int       `json:"overallScore"`
	Verdict       Verdict   `json:"verdict"`
	Explanation   string    `json:"explanation"`
	MediaURL      string    `json:"mediaUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewCandidate builds the archive input from a validated descriptor and
// the aggregator output.
func NewCandidate(d MediaDescriptor, agg Aggregation, duration *string) Candidate {
	return Candidate{
		FileName:      d.FileName,
		FileType:      d.FileType,
		FileSize:      d.FileSize,
		Duration:      duration,
		FaceScore:     agg.Scores.Face,
		AudioScore:    agg.Scores.Audio,
		MetadataScore: agg.Scores.Metadata,
		OverallScore:  agg.OverallScore,
		Verdict:       agg.Verdict,
		Explanation:   agg.Explanation,
	}
}

// Validate re-checks every invariant of the candidate. The archive calls
// it before assigning an id so a malformed record is never stored.
func (c Candidate) Validate() error {
	if c.FileName == "" {
		return &ValidationError{Field: "fileName", Constraint: ConstraintRequired, Message: "file name is required"}
	}
	if c.FileType == "" {
		return &ValidationError{Field: "fileType", Constraint: ConstraintRequired, Message: "file type is required"}
	}
	if c.FileSize <= 0 {
		return &ValidationError{Field: "fileSize", Constraint: ConstraintEmpty, Message: "file size must be greater than zero"}
	}
	scores := []struct {
		field string
		value int
	}{
		{"faceScore", c.FaceScore},
		{"audioScore", c.AudioScore},
		{"metadataScore", c.MetadataScore},
		{"overallScore", c.OverallScore},
	}
	for _, s := range scores {
		if s.value < MinScore || s.value > MaxScore {
			return &AggregationError{Field: s.field, Value: s.value}
		}
	}
	if want := overallOf(c.FaceScore, c.AudioScore, c.MetadataScore); want != c.OverallScore {
		return &AggregationError{Field: "overallScore", Value: c.OverallScore, Reason: "does not match weighted formula"}
	}
	if v, _ := Classify(c.OverallScore); v != c.Verdict {
		return &AggregationError{Field: "verdict", Value: c.OverallScore, Reason: "verdict does not match overall score"}
	}
	return nil
}

// Build materialises an Analysis once the archive has assigned identity.
func (c Candidate) Build(id ID, createdAt time.Time) *Analysis {
	var duration *string
	if c.Duration != nil {
		d := *c.Duration
		duration = &d
	}
	return &Analysis{
		ID:            id,
		FileName:      c.FileName,
		FileType:      c.FileType,
		FileSize:      c.FileSize,
		Duration:      duration,
		FaceScore:     c.FaceScore,
		AudioScore:    c.AudioScore,
		MetadataScore: c.MetadataScore,
		OverallScore:  c.OverallScore,
		Verdict:       c.Verdict,
		Explanation:   c.Explanation,
		MediaURL:      c.MediaURL,
		CreatedAt:     createdAt,
	}
}

// Clone returns a deep copy so callers can never mutate archived state.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	if a.Duration != nil {
		d := *a.Duration
		out.Duration = &d
	}
	return &out
}

// Summary rekap jumlah analisis per verdict
type Summary struct {
	Total        int             `json:"total"`
	ByVerdict    map[Verdict]int `json:"byVerdict"`
	AverageScore float64         `json:"averageScore"`
}
