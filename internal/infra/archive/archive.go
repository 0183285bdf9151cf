// Package archive implements the append-only analysis archive on top of a
// pluggable Store backend (memory, SQLite, MySQL or Postgres).
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bryanwahyu/mediatrust/internal/application"
	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatrust_archive_cache_hits_total",
		Help: "Get calls answered from the record cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatrust_archive_cache_misses_total",
		Help: "Get calls that went to the store.",
	})
)

// Tailer is implemented by stores that can report their newest record.
type Tailer interface {
	Last(ctx context.Context) (*domain.Analysis, error)
}

// Archive serialises every Create through one mutex so id and timestamp
// assignment follow a single total order across concurrent callers.
// List goes straight to the store; Get may be served from an LRU of
// records, which never change once archived.
type Archive struct {
	store   domain.Store
	clock   application.Clock
	retries int
	backoff time.Duration
	cache   *lru.Cache[domain.ID, *domain.Analysis]

	mu     sync.Mutex
	lastID domain.ID
	lastAt time.Time
}

// Option configures an Archive.
type Option func(*Archive)

// WithRetries sets how many times an unavailable backend is pinged again
// before Create gives up. Retries happen before id assignment only.
func WithRetries(n int, backoff time.Duration) Option {
	return func(a *Archive) {
		if n >= 0 {
			a.retries = n
		}
		if backoff > 0 {
			a.backoff = backoff
		}
	}
}

// WithCache keeps up to size records in memory for Get. size <= 0 disables it.
func WithCache(size int) Option {
	return func(a *Archive) {
		if size <= 0 {
			a.cache = nil
			return
		}
		c, err := lru.New[domain.ID, *domain.Analysis](size)
		if err == nil {
			a.cache = c
		}
	}
}

// New wraps store. A nil clock falls back to the system clock.
func New(store domain.Store, clock application.Clock, opts ...Option) *Archive {
	if clock == nil {
		clock = application.SystemClock{}
	}
	a := &Archive{store: store, clock: clock, backoff: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prime loads the newest persisted record so ids and timestamps keep
// increasing across restarts of a persistent backend.
func (a *Archive) Prime(ctx context.Context) error {
	t, ok := a.store.(Tailer)
	if !ok {
		return nil
	}
	last, err := t.Last(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return &domain.ArchiveError{Op: "prime", Err: err}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastID, a.lastAt = last.ID, last.CreatedAt
	return nil
}

// Create validates the candidate, assigns the next id and the current
// timestamp, and stores the record. Timestamps never go backwards relative
// to ids even if the clock does.
func (a *Archive) Create(ctx context.Context, c domain.Candidate) (*domain.Analysis, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := a.ready(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// DB columns keep microseconds; truncate so Get returns the same value.
	now := a.clock.Now().UTC().Truncate(time.Microsecond)
	if now.Before(a.lastAt) {
		now = a.lastAt
	}

	// a non-increasing id means another writer or a reset backend; the
	// store drops the row before it becomes visible
	id, err := a.store.Insert(ctx, c, now, func(id domain.ID) error {
		if id <= a.lastID {
			return fmt.Errorf("backend assigned id %d, not greater than %d", id, a.lastID)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ArchiveError{Op: "create", Err: err}
	}
	a.lastID, a.lastAt = id, now

	rec := c.Build(id, now)
	if a.cache != nil {
		a.cache.Add(id, rec.Clone())
	}
	return rec, nil
}

// List returns every record in ascending id order.
func (a *Archive) List(ctx context.Context) ([]*domain.Analysis, error) {
	out, err := a.store.All(ctx)
	if err != nil {
		return nil, &domain.ArchiveError{Op: "list", Err: err}
	}
	if out == nil {
		out = []*domain.Analysis{}
	}
	return out, nil
}

// Get returns the record with the given id or domain.ErrNotFound.
func (a *Archive) Get(ctx context.Context, id domain.ID) (*domain.Analysis, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	if a.cache != nil {
		if rec, ok := a.cache.Get(id); ok {
			cacheHits.Inc()
			return rec.Clone(), nil
		}
		cacheMisses.Inc()
	}
	rec, err := a.store.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.ArchiveError{Op: "get", Err: err}
	}
	if a.cache != nil {
		a.cache.Add(id, rec.Clone())
	}
	return rec, nil
}

// Ping reports backend availability; stores without Ping are always up.
func (a *Archive) Ping(ctx context.Context) error {
	p, ok := a.store.(domain.Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// ready pings the backend with bounded retries before the write is admitted.
func (a *Archive) ready(ctx context.Context) error {
	p, ok := a.store.(domain.Pinger)
	if !ok {
		return nil
	}
	var err error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if err = p.Ping(ctx); err == nil {
			return nil
		}
		if attempt == a.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.backoff * time.Duration(attempt+1)):
		}
	}
	return &domain.ArchiveError{Op: "ping", Err: err}
}
