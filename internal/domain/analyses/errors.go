package analyses

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the archive for unknown ids.
	ErrNotFound = errors.New("analysis not found")
	// ErrValidation matches every *ValidationError and validation-class *DetectorError.
	ErrValidation = errors.New("validation failed")
	// ErrDetectorFailed matches every *DetectorError.
	ErrDetectorFailed = errors.New("detector failed")
	// ErrAggregation matches every *AggregationError.
	ErrAggregation = errors.New("aggregation failed")
	// ErrArchiveUnavailable matches every *ArchiveError.
	ErrArchiveUnavailable = errors.New("archive unavailable")
	// ErrQuotaExceeded indicates a remote detector rejected the call for quota reasons (HTTP 429).
	ErrQuotaExceeded = errors.New("detector quota exceeded")
)

// Constraint names the rule a ValidationError violated.
type Constraint string

const (
	ConstraintRequired    Constraint = "required"
	ConstraintEmpty       Constraint = "empty"
	ConstraintTooLarge    Constraint = "too_large"
	ConstraintUnsupported Constraint = "unsupported_type"
	ConstraintMismatch    Constraint = "content_mismatch"
	ConstraintCorrupt     Constraint = "corrupt"
)

// ValidationError describes a rejected upload.
type ValidationError struct {
	Field      string
	Constraint Constraint
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DetectorError wraps a failure of one detector. Validation marks problems
// with the media itself (e.g. a corrupt container) that surface late.
type DetectorError struct {
	Detector   string
	Err        error
	Validation bool
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %s: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

func (e *DetectorError) Is(target error) bool {
	if target == ErrDetectorFailed {
		return true
	}
	return e.Validation && target == ErrValidation
}

// AggregationError reports a missing or out-of-range score.
type AggregationError struct {
	Field   string
	Value   int
	Missing bool
	Reason  string
}

func (e *AggregationError) Error() string {
	switch {
	case e.Missing:
		return fmt.Sprintf("aggregation: %s score missing", e.Field)
	case e.Reason != "":
		return fmt.Sprintf("aggregation: %s %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("aggregation: %s score %d outside [%d,%d]", e.Field, e.Value, MinScore, MaxScore)
	}
}

func (e *AggregationError) Is(target error) bool { return target == ErrAggregation }

// ArchiveError wraps a storage backend failure.
type ArchiveError struct {
	Op  string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

func (e *ArchiveError) Is(target error) bool { return target == ErrArchiveUnavailable }
