package mysql

import (
	"database/sql"
	"strings"
)

// nullIfBlank maps a nil or whitespace-only duration to SQL NULL
func nullIfBlank(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
