package analysis

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, j *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	UpdateStage(ctx context.Context, id JobID, stage Stage) error
	Latest(ctx context.Context, limit int) ([]*Job, error)
}

// EventRepository defines persistence for job audit entries
type EventRepository interface {
	Save(ctx context.Context, e *Event) error
	ListByJob(ctx context.Context, id JobID, limit int) ([]*Event, error)
}

// VCS is the narrow version-control capability the pipeline needs. Every
// call names its working directory explicitly.
type VCS interface {
	Clone(ctx context.Context, url, dir string) error
	FetchRef(ctx context.Context, dir, remote, refspec string) error
	Checkout(ctx context.Context, dir, branch string) error
}

// Queue port (interface untuk eksekusi job di background)
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
}

// ArtifactStore port (interface untuk penyimpanan hasil)
type ArtifactStore interface {
	PutJSON(ctx context.Context, key string, data []byte) (string, error)
}
