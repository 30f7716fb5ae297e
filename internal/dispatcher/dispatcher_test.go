package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/data/store"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

func TestEnqueue(t *testing.T) {
	queue := store.InitInMemoryQueue()
	d := New(queue)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "trace-1")

	jobId, err := d.Enqueue(ctx, jobModel.JobTypeParse, jobModel.JobPayload{DocumentId: "doc-1"}, jobModel.JobOptions{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if jobId == "" {
		t.Fatal("Enqueue returned an empty job id")
	}

	job, found := queue.GetJob(ctx, jobId)
	if !found {
		t.Fatal("enqueued job not in queue")
	}
	if job.Type != jobModel.JobTypeParse || job.Payload.DocumentId != "doc-1" {
		t.Errorf("job = %+v", job)
	}
	if job.TraceId != "trace-1" {
		t.Errorf("TraceId = %q, want trace propagated from context", job.TraceId)
	}
	if job.MaxAttempts != config.MaxAttempts() {
		t.Errorf("MaxAttempts = %d, want default %d", job.MaxAttempts, config.MaxAttempts())
	}
}

func TestEnqueue_Validation(t *testing.T) {
	d := New(store.InitInMemoryQueue())

	if _, err := d.Enqueue(context.Background(), "", jobModel.JobPayload{}, jobModel.JobOptions{}); err == nil {
		t.Error("empty job type accepted")
	}
}

func TestEnqueue_ExplicitOptions(t *testing.T) {
	queue := store.InitInMemoryQueue()
	d := New(queue)
	ctx := context.Background()

	jobId, err := d.Enqueue(ctx, jobModel.JobTypeEmbed, jobModel.JobPayload{}, jobModel.JobOptions{
		Attempts:    5,
		BackoffBase: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	job, _ := queue.GetJob(ctx, jobId)
	if job.MaxAttempts != 5 || job.BackoffBase != 50*time.Millisecond {
		t.Errorf("options not honored: %+v", job)
	}
}
