package analyses

import (
	"context"
	"io"
	"time"
)

// Role names the authenticity signal a detector is responsible for.
type Role string

const (
	RoleFace     Role = "face"
	RoleAudio    Role = "audio"
	RoleMetadata Role = "metadata"
)

// Detector port (interface untuk satu pemeriksaan keaslian).
// Score must return a value in [MinScore, MaxScore] or an error, and must
// give up when ctx is done.
type Detector interface {
	Name() string
	Score(ctx context.Context, d MediaDescriptor) (int, error)
}

// Archive port: append-only, identity-assigning persistence for analyses.
type Archive interface {
	Create(ctx context.Context, c Candidate) (*Analysis, error)
	List(ctx context.Context) ([]*Analysis, error)
	Get(ctx context.Context, id ID) (*Analysis, error)
}

// Store is the backend behind an Archive. Insert assigns the id; callers
// serialise Insert themselves.
type Store interface {
	// Insert stores c under the next id. admit is called with that id before
	// the row becomes visible; if it returns an error nothing is kept.
	Insert(ctx context.Context, c Candidate, createdAt time.Time, admit func(ID) error) (ID, error)
	All(ctx context.Context) ([]*Analysis, error)
	ByID(ctx context.Context, id ID) (*Analysis, error)
}

// Pinger is implemented by stores that can report availability before a write.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MediaStore port (interface untuk penyimpanan file media)
type MediaStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// Notifier is told about every archived analysis.
type Notifier interface {
	AnalysisCreated(ctx context.Context, a *Analysis) error
}
