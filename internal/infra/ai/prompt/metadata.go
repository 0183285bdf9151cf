package prompt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// maxHeaderBytes limits how much of the file header is sent to the model.
const maxHeaderBytes = 64

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a digital media forensics analyst. You judge the integrity of a media file's metadata and container header. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object.
- "score" is an integer from 0 to 100: 100 means the metadata is fully consistent and shows no sign of tampering, 0 means it is clearly forged or inconsistent.
- "reason" is one short sentence.
- "corrupt" is true only when the header cannot belong to any valid media container.
- Judge only from the facts given; when information is missing, be conservative and stay near the middle of the scale.

Schema (example with empty values):
{
  "score": 0,
  "reason": "<string>",
  "corrupt": false
}`
}

// MetadataFacts is what the model is told about a file.
type MetadataFacts struct {
	FileName     string
	DeclaredType string
	SniffedType  string
	FileSize     int64
	Header       []byte
}

// GetUserPrompt builds a compact user message from the facts.
func GetUserPrompt(f MetadataFacts) string {
	header := f.Header
	if len(header) > maxHeaderBytes {
		header = header[:maxHeaderBytes]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the metadata integrity of this file and respond with the JSON per schema.\n")
	fmt.Fprintf(&b, "file_name: %s\n", f.FileName)
	fmt.Fprintf(&b, "declared_type: %s\n", f.DeclaredType)
	if f.SniffedType != "" {
		fmt.Fprintf(&b, "sniffed_type: %s\n", f.SniffedType)
	}
	fmt.Fprintf(&b, "size_bytes: %d\n", f.FileSize)
	if len(header) > 0 {
		fmt.Fprintf(&b, "header_hex: %s\n", hex.EncodeToString(header))
	}
	return b.String()
}

// Verdict is the structure the system prompt asks the model to return.
type Verdict struct {
	Score   *int   `json:"score"`
	Reason  string `json:"reason"`
	Corrupt bool   `json:"corrupt"`
}

// ParseVerdict decodes the model output, tolerating stray code fences.
func ParseVerdict(raw string) (Verdict, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var v Verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode model output: %w", err)
	}
	if v.Score == nil {
		return Verdict{}, fmt.Errorf("model output has no score")
	}
	return v, nil
}
