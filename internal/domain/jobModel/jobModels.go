package jobModel

import (
	"context"
	"time"
)

type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Stage job types. Each handler enqueues the next one on success;
// "chunking" is the pipeline's re-entry point for resume.
const (
	JobTypeParse = "parse"
	JobTypeChunk = "chunking"
	JobTypeEmbed = "embedding"
	JobTypeIndex = "indexing"
)

func StageJobTypes() []string {
	return []string{JobTypeParse, JobTypeChunk, JobTypeEmbed, JobTypeIndex}
}

type Job struct {
	Id            string        `json:"id"`
	Type          string        `json:"type"`
	Payload       JobPayload    `json:"payload"`
	Status        JobStatus     `json:"status"`
	AttemptsMade  int           `json:"attempts_made"`
	MaxAttempts   int           `json:"max_attempts"`
	BackoffBase   time.Duration `json:"backoff_base"`
	TraceId       string        `json:"trace_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ProcessedAt   time.Time     `json:"processed_at,omitempty"`
	FinishedAt    time.Time     `json:"finished_at,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

type JobPayload struct {
	DocumentId      string           `json:"document_id"`
	DatasetId       string           `json:"dataset_id"`
	UserId          string           `json:"user_id"`
	SourcePath      string           `json:"source_path,omitempty"`
	EmbeddingConfig *EmbeddingConfig `json:"embedding_config,omitempty"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int32  `json:"dimension"`
}

type JobOptions struct {
	Delay       time.Duration
	Attempts    int
	BackoffBase time.Duration
}

type QueueCounts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type QueueEvent struct {
	At      time.Time `json:"at"`
	JobId   string    `json:"job_id"`
	JobType string    `json:"job_type"`
	Event   string    `json:"event"`
	Detail  string    `json:"detail,omitempty"`
}

// Queue is the narrow client to the durable broker-backed job store.
// It is the single source of truth for job existence and state.
type Queue interface {
	Enqueue(ctx context.Context, job Job, opts JobOptions) error

	// Dequeue hands out one leased job, bumping AttemptsMade and moving it
	// to active. Returns false when nothing is ready.
	Dequeue(ctx context.Context) (Job, bool)

	Ack(ctx context.Context, jobId string) error

	// Fail applies the retry policy: re-delay with exponential backoff while
	// attempts remain, otherwise mark the job permanently failed.
	Fail(ctx context.Context, jobId string, reason string) error

	// FailPermanent skips the retry policy entirely (configuration errors).
	FailPermanent(ctx context.Context, jobId string, reason string) error

	// Requeue hands a leased job back without consuming its retry budget.
	// Used by the admission throttle path.
	Requeue(ctx context.Context, jobId string, delay time.Duration) error

	GetJob(ctx context.Context, jobId string) (Job, bool)
	Counts(ctx context.Context) (QueueCounts, error)
	ListByStatus(ctx context.Context, status JobStatus, limit int64) ([]Job, error)

	// RemoveByDocument removes every waiting or delayed job whose payload
	// references the document. Active jobs cannot be interrupted; they are
	// detached so late completions become no-ops.
	RemoveByDocument(ctx context.Context, documentId string) (int, error)

	RemoveByTypes(ctx context.Context, jobTypes ...string) (int, error)
	Drain(ctx context.Context) error
	RetryFailed(ctx context.Context) (int, error)
	Cleanup(ctx context.Context) error
	RecentEvents(ctx context.Context, limit int64) ([]QueueEvent, error)
}

// Handler is one registered job capability. Implementations are stateless
// from the pipeline's point of view and must be idempotent per
// document+stage.
type Handler interface {
	JobType() string
	Handle(ctx context.Context, job Job) error
}
