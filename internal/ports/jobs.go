package ports

import (
	"context"
	"time"

	"voterfield/internal/domain"
)

// QueueImportVoters is the queue name import work is enqueued under.
const QueueImportVoters = "import_voters"

// ImportTask is a claimed unit of import work.
type ImportTask struct {
	JobID  string
	OrgID  string
	UserID string
	Source domain.ImportSource
}

// JobRepository stores job snapshots and their lifecycle transitions.
type JobRepository interface {
	GetJob(ctx context.Context, orgID, jobID string) (domain.Job, error)
	// MarkCompleted and MarkFailed only move jobs that are still processing.
	MarkCompleted(ctx context.Context, jobID string, result map[string]any) (domain.Job, error)
	MarkFailed(ctx context.Context, jobID string, reason string) (domain.Job, error)
	// FailStuck force-fails processing jobs started before the cutoff.
	FailStuck(ctx context.Context, startedBefore time.Time, reason string) ([]domain.Job, error)
}

// ImportQueue hands import work from the API to workers.
type ImportQueue interface {
	// Enqueue stores a pending job together with its task. Either both are
	// stored or neither is.
	Enqueue(ctx context.Context, name string, job domain.Job, task ImportTask) (domain.Job, error)
	// ClaimNext locks the oldest pending task and moves its job to processing.
	ClaimNext(ctx context.Context) (task ImportTask, found bool, err error)
	// Claim claims a specific pending job.
	Claim(ctx context.Context, jobID string) (ImportTask, error)
}

// ObjectStore stages uploaded files by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Pinger reports dependency readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
