package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
	"github.com/google/uuid"
)

// Dispatcher is the sole producer-side entry into the queue. Every job in
// the system passes through Enqueue, which makes it the place for default
// options and cross-cutting bookkeeping.
type Dispatcher struct {
	queue  jobModel.Queue
	logger *logger_i.Logger
}

func New(queue jobModel.Queue) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		logger: logger_i.NewLogger("Dispatcher"),
	}
}

// Enqueue persists one typed job. A failed enqueue is the caller's problem;
// there is no local buffering.
func (d *Dispatcher) Enqueue(ctx context.Context, jobType string, payload jobModel.JobPayload, opts jobModel.JobOptions) (string, error) {
	if jobType == "" {
		return "", fmt.Errorf("job type is required")
	}

	if opts.Attempts < 1 {
		opts.Attempts = config.MaxAttempts()
	}
	if opts.BackoffBase < 1 {
		opts.BackoffBase = config.BackoffBase()
	}

	job := jobModel.Job{
		Id:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		job.TraceId = traceId
	}

	if err := d.queue.Enqueue(ctx, job, opts); err != nil {
		d.logger.Error("enqueue failed", "jobType", jobType, "documentId", payload.DocumentId, "error", err)
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	d.logger.Debug("enqueued job", "jobId", job.Id, "jobType", jobType, "documentId", payload.DocumentId)
	return job.Id, nil
}
