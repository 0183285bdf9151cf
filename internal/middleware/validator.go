package middleware

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Input validation and sanitization utilities

// ParseID parses a positive decimal analysis id. Anything else is an error.
func ParseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("id cannot be empty")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid id %q", raw)
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return id, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// maxFileNameLen caps stored names; longer names keep their extension.
const maxFileNameLen = 255

// SanitizeFileName reduces a client-supplied name to its last path element
// without control characters. It returns "" when nothing usable is left.
func SanitizeFileName(name string) string {
	name = SanitizeString(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	if len(name) > maxFileNameLen {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:maxFileNameLen-len(ext)], "") + ext
	}
	return name
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
