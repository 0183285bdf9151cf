package detectors

import (
	"context"
	"time"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// Fixed always returns the same score, or the same error when Err is set.
type Fixed struct {
	ID    string
	Value int
	Err   error
	Delay time.Duration
}

func (f *Fixed) Name() string { return f.ID }

func (f *Fixed) Score(ctx context.Context, _ domain.MediaDescriptor) (int, error) {
	if err := wait(ctx, f.Delay); err != nil {
		return 0, err
	}
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Value, nil
}
