package detectors

import (
	"context"
	"math/rand"
	"sync"
	"time"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// Random is a stand-in detector that returns a uniformly distributed score
// in [Min, Max]. It takes the place of real signal analysis in demos and tests.
type Random struct {
	name     string
	min, max int
	latency  time.Duration

	mu         sync.Mutex
	randSource *rand.Rand
}

// NewRandom builds a random detector. A zero seed uses the current time.
func NewRandom(name string, min, max int, seed int64) *Random {
	if min > max {
		min, max = max, min
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{
		name:       name,
		min:        min,
		max:        max,
		randSource: rand.New(rand.NewSource(seed)),
	}
}

// WithLatency makes every Score call take at least d, unless ctx ends first.
func (r *Random) WithLatency(d time.Duration) *Random {
	r.latency = d
	return r
}

func (r *Random) Name() string { return r.name }

func (r *Random) Score(ctx context.Context, _ domain.MediaDescriptor) (int, error) {
	if err := wait(ctx, r.latency); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.min + r.randSource.Intn(r.max-r.min+1), nil
}

// wait sleeps for d or returns ctx.Err() if ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
