package analyses

import (
	"fmt"
	"net/http"
	"strings"
)

// SniffLen is the number of leading bytes kept for content sniffing.
const SniffLen = 512

// DefaultMaxFileSize mirrors the upload limit of the edge (50 MiB).
const DefaultMaxFileSize = int64(50 << 20)

// DefaultAllowedTypes accepts any video, audio or image MIME type.
var DefaultAllowedTypes = []string{"video/", "audio/", "image/"}

// MediaDescriptor is the transient description of a submitted file.
type MediaDescriptor struct {
	FileName string
	FileType string
	FileSize int64
	// Header holds up to SniffLen leading bytes of the content; may be nil.
	Header []byte
}

// SniffedType returns the content type detected from Header, or "" when
// no header is available.
func (d MediaDescriptor) SniffedType() string {
	if len(d.Header) == 0 {
		return ""
	}
	return http.DetectContentType(d.Header)
}

// MediaRules holds the upload constraints.
type MediaRules struct {
	MaxFileSize int64
	// AllowedTypes entries ending in "/" match a whole family, others match exactly.
	AllowedTypes []string
}

// DefaultMediaRules returns the limits used when nothing is configured.
func DefaultMediaRules() MediaRules {
	return MediaRules{MaxFileSize: DefaultMaxFileSize, AllowedTypes: DefaultAllowedTypes}
}

// non-media signatures that can never back a declared audio/video/image upload
var foreignTypes = map[string]bool{
	"application/pdf":              true,
	"application/zip":              true,
	"application/x-gzip":           true,
	"application/x-rar-compressed": true,
	"application/wasm":             true,
	"application/postscript":       true,
}

// ValidateMedia checks a descriptor against the rules and returns a
// *ValidationError naming the first violated constraint.
func ValidateMedia(d MediaDescriptor, rules MediaRules) error {
	if strings.TrimSpace(d.FileName) == "" {
		return &ValidationError{Field: "file", Constraint: ConstraintRequired, Message: "file name is required"}
	}
	if d.FileSize <= 0 {
		return &ValidationError{Field: "file", Constraint: ConstraintEmpty, Message: "file is empty"}
	}
	if rules.MaxFileSize > 0 && d.FileSize > rules.MaxFileSize {
		return &ValidationError{
			Field:      "file",
			Constraint: ConstraintTooLarge,
			Message:    fmt.Sprintf("file size %d exceeds limit of %d bytes", d.FileSize, rules.MaxFileSize),
		}
	}

	declared := baseType(d.FileType)
	if declared == "" {
		return &ValidationError{Field: "fileType", Constraint: ConstraintRequired, Message: "file type is required"}
	}
	allowed := rules.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	if !typeAllowed(declared, allowed) {
		return &ValidationError{
			Field:      "fileType",
			Constraint: ConstraintUnsupported,
			Message:    fmt.Sprintf("unsupported file type %q", d.FileType),
		}
	}

	if sniffed := baseType(d.SniffedType()); sniffed != "" && isMediaFamily(declared) {
		if strings.HasPrefix(sniffed, "text/") || foreignTypes[sniffed] {
			return &ValidationError{
				Field:      "file",
				Constraint: ConstraintMismatch,
				Message:    fmt.Sprintf("content looks like %s, not %s", sniffed, declared),
			}
		}
	}
	return nil
}

func typeAllowed(t string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if strings.HasSuffix(a, "/") {
			if strings.HasPrefix(t, a) {
				return true
			}
			continue
		}
		if t == a {
			return true
		}
	}
	return false
}

func isMediaFamily(t string) bool {
	return strings.HasPrefix(t, "video/") || strings.HasPrefix(t, "audio/") || strings.HasPrefix(t, "image/")
}

// baseType strips parameters ("; charset=...") and lowercases.
func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
