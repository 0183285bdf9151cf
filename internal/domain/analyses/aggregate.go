package analyses

// Score bounds shared by every detector and by the overall score.
const (
	MinScore = 0
	MaxScore = 100
)

// Verdict thresholds on the overall score.
const (
	VerifiedThreshold = 70
	DeepfakeThreshold = 50
)

// Weights in tenths: 0.4 face, 0.4 audio, 0.2 metadata.
const (
	faceWeight     = 4
	audioWeight    = 4
	metadataWeight = 2
)

const (
	ExplanationVerified = "High consistency across all checks; no signs of manipulation detected."
	ExplanationDeepfake = "Major anomalies detected in audio-video synchronization and metadata headers."
	ExplanationSuspect  = "Some checks passed, but low confidence in metadata integrity."
)

// ScoreVector value object. Nil means the detector produced no score.
type ScoreVector struct {
	Face     *int
	Audio    *int
	Metadata *int
}

// Scores is a complete, range-checked ScoreVector.
type Scores struct {
	Face     int `json:"face"`
	Audio    int `json:"audio"`
	Metadata int `json:"metadata"`
}

// Vector converts complete scores back into a ScoreVector.
func (s Scores) Vector() ScoreVector {
	f, a, m := s.Face, s.Audio, s.Metadata
	return ScoreVector{Face: &f, Audio: &a, Metadata: &m}
}

// Aggregation hasil dari Aggregate
type Aggregation struct {
	Scores       Scores
	OverallScore int
	Verdict      Verdict
	Explanation  string
}

// Aggregate combines the three detector scores into an overall score and
// verdict. The weighted sum is computed in integer tenths and rounded half
// away from zero, so 69.5 becomes 70. Missing or out-of-range scores fail
// with *AggregationError; nothing is clamped.
func Aggregate(v ScoreVector) (Aggregation, error) {
	fields := []struct {
		name string
		val  *int
	}{
		{"face", v.Face},
		{"audio", v.Audio},
		{"metadata", v.Metadata},
	}
	for _, f := range fields {
		if f.val == nil {
			return Aggregation{}, &AggregationError{Field: f.name, Missing: true}
		}
		if *f.val < MinScore || *f.val > MaxScore {
			return Aggregation{}, &AggregationError{Field: f.name, Value: *f.val}
		}
	}

	scores := Scores{Face: *v.Face, Audio: *v.Audio, Metadata: *v.Metadata}
	overall := overallOf(scores.Face, scores.Audio, scores.Metadata)
	verdict, explanation := Classify(overall)
	return Aggregation{
		Scores:       scores,
		OverallScore: overall,
		Verdict:      verdict,
		Explanation:  explanation,
	}, nil
}

// overallOf expects scores already in range; the sum is never negative.
func overallOf(face, audio, metadata int) int {
	tenths := faceWeight*face + audioWeight*audio + metadataWeight*metadata
	return (tenths + 5) / 10
}

// Classify maps an overall score to its verdict and explanation.
// First match wins: >=70 verified, <50 deepfake, otherwise suspicious.
func Classify(overall int) (Verdict, string) {
	switch {
	case overall >= VerifiedThreshold:
		return VerdictVerifiedContent, ExplanationVerified
	case overall < DeepfakeThreshold:
		return VerdictPossibleDeepfake, ExplanationDeepfake
	default:
		return VerdictSuspicious, ExplanationSuspect
	}
}
