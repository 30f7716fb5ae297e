package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/docpipeline/internal/data/store"
	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

func newOrchestrator(t *testing.T) (*Orchestrator, *store.InMemoryQueue, *store.InMemoryDocumentStore) {
	t.Helper()
	queue := store.InitInMemoryQueue()
	docs := store.InitInMemoryDocumentStore()
	return New(queue, docs, dispatcher.New(queue)), queue, docs
}

func TestPauseAndResume(t *testing.T) {
	o, queue, docs := newOrchestrator(t)
	ctx := context.Background()

	doc := docModel.Document{
		Id: "doc-1", DatasetId: "ds-1", Name: "a.pdf",
		IndexingStatus: docModel.IndexingEmbedding,
		Pages:          []docModel.DocPage{{Number: 1, Content: "text"}},
	}
	if err := docs.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	t.Run("Pause Sets Flags", func(t *testing.T) {
		if err := o.Pause(ctx, "doc-1", "user-9"); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		paused, _ := docs.GetDocument(ctx, "doc-1")
		if !paused.IsPaused || paused.PausedBy != "user-9" || paused.IndexingStatus != docModel.IndexingPaused {
			t.Errorf("document after pause = %+v", paused)
		}
	})

	t.Run("Pause Is Idempotent", func(t *testing.T) {
		if err := o.Pause(ctx, "doc-1", "someone-else"); err != nil {
			t.Fatalf("second Pause errored: %v", err)
		}
		paused, _ := docs.GetDocument(ctx, "doc-1")
		if paused.PausedBy != "user-9" {
			t.Errorf("second pause overwrote PausedBy: %s", paused.PausedBy)
		}
	})

	t.Run("Resume Re-Enqueues", func(t *testing.T) {
		if err := o.Resume(ctx, "doc-1", "user-9"); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		resumed, _ := docs.GetDocument(ctx, "doc-1")
		if resumed.IsPaused || resumed.PausedBy != "" {
			t.Errorf("document after resume = %+v", resumed)
		}
		job, ok := queue.Dequeue(ctx)
		if !ok {
			t.Fatal("resume enqueued nothing")
		}
		//pages exist but no segments, so processing re-enters at chunking
		if job.Type != jobModel.JobTypeChunk {
			t.Errorf("resume job type = %s, want chunking", job.Type)
		}
	})

	t.Run("Resume Of Unpaused Document Fails", func(t *testing.T) {
		if err := o.Resume(ctx, "doc-1", ""); err == nil {
			t.Error("resuming an unpaused document did not error")
		}
	})
}

func TestResume_ReentryPoints(t *testing.T) {
	o, queue, docs := newOrchestrator(t)
	ctx := context.Background()

	t.Run("No Pages Reenters At Parse", func(t *testing.T) {
		doc := docModel.Document{Id: "doc-raw", DatasetId: "ds-1", IsPaused: true, SourcePath: "/tmp/raw.pdf"}
		_ = docs.SaveDocument(ctx, doc)
		if err := o.Resume(ctx, "doc-raw", ""); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		job, ok := queue.Dequeue(ctx)
		if !ok || job.Type != jobModel.JobTypeParse {
			t.Errorf("job = %+v, want parse", job)
		}
		if job.Payload.SourcePath != "/tmp/raw.pdf" {
			t.Errorf("payload lost source path: %+v", job.Payload)
		}
	})

	t.Run("All Embedded Reenters At Indexing", func(t *testing.T) {
		doc := docModel.Document{
			Id: "doc-embedded", DatasetId: "ds-1", IsPaused: true,
			Pages: []docModel.DocPage{{Number: 1, Content: "text"}},
		}
		_ = docs.SaveDocument(ctx, doc)
		_ = docs.SaveSegments(ctx, []docModel.Segment{
			{Id: "s-1", DocumentId: "doc-embedded", Vector: []float32{0.5}, Status: docModel.SegmentCompleted},
		})
		if err := o.Resume(ctx, "doc-embedded", ""); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		job, ok := queue.Dequeue(ctx)
		if !ok || job.Type != jobModel.JobTypeIndex {
			t.Errorf("job = %+v, want indexing", job)
		}
	})
}

func TestRetry(t *testing.T) {
	o, queue, docs := newOrchestrator(t)
	ctx := context.Background()

	t.Run("Requires Failed State", func(t *testing.T) {
		_ = docs.SaveDocument(ctx, docModel.Document{Id: "doc-fine", IndexingStatus: docModel.IndexingEmbedding})
		if err := o.Retry(ctx, "doc-fine"); err == nil {
			t.Error("retry of a healthy document did not error")
		}
	})

	t.Run("Clears Error And Re-Enqueues", func(t *testing.T) {
		_ = docs.SaveDocument(ctx, docModel.Document{
			Id: "doc-broken", DatasetId: "ds-1",
			IndexingStatus: docModel.IndexingFailed,
			Error:          "embedding batch failed",
			Pages:          []docModel.DocPage{{Number: 1, Content: "text"}},
		})
		if err := o.Retry(ctx, "doc-broken"); err != nil {
			t.Fatalf("Retry failed: %v", err)
		}
		retried, _ := docs.GetDocument(ctx, "doc-broken")
		if retried.Error != "" || retried.IndexingStatus != docModel.IndexingWaiting {
			t.Errorf("document after retry = %+v", retried)
		}
		if _, ok := queue.Dequeue(ctx); !ok {
			t.Error("retry enqueued nothing")
		}
	})
}

func TestCancelAllProcessingJobs(t *testing.T) {
	o, queue, docs := newOrchestrator(t)
	ctx := context.Background()

	t.Run("Zero Jobs Is Clean", func(t *testing.T) {
		result, err := o.CancelAllProcessingJobs(ctx, "doc-nothing")
		if err != nil {
			t.Fatalf("cancel with no jobs errored: %v", err)
		}
		if result.CancelledCount != 0 {
			t.Errorf("CancelledCount = %d, want 0", result.CancelledCount)
		}
	})

	t.Run("Removes Queued Jobs And Clears Ids", func(t *testing.T) {
		doc := docModel.Document{Id: "doc-busy", DatasetId: "ds-1"}
		for i := 0; i < 2; i++ {
			if err := queue.Enqueue(ctx, jobModel.Job{
				Type:    jobModel.JobTypeEmbed,
				Payload: jobModel.JobPayload{DocumentId: "doc-busy"},
			}, jobModel.JobOptions{}); err != nil {
				t.Fatalf("Enqueue failed: %v", err)
			}
		}
		jobs, _ := queue.ListByStatus(ctx, jobModel.JobStatusWaiting, 10)
		for _, job := range jobs {
			doc.AddActiveJob(job.Id)
		}
		_ = docs.SaveDocument(ctx, doc)

		result, err := o.CancelAllProcessingJobs(ctx, "doc-busy")
		if err != nil {
			t.Fatalf("CancelAllProcessingJobs failed: %v", err)
		}
		if result.CancelledCount != 2 {
			t.Errorf("CancelledCount = %d, want 2", result.CancelledCount)
		}
		if _, ok := queue.Dequeue(ctx); ok {
			t.Error("cancelled job still dequeued")
		}
		cleared, _ := docs.GetDocument(ctx, "doc-busy")
		if len(cleared.ActiveJobIds) != 0 {
			t.Errorf("ActiveJobIds not cleared: %v", cleared.ActiveJobIds)
		}
	})
}

func TestDeleteDocument(t *testing.T) {
	o, queue, docs := newOrchestrator(t)
	ctx := context.Background()

	_ = docs.SaveDocument(ctx, docModel.Document{Id: "doc-del", DatasetId: "ds-1"})
	_ = docs.SaveSegments(ctx, []docModel.Segment{
		{Id: "s-1", DocumentId: "doc-del"},
		{Id: "s-2", DocumentId: "doc-del"},
	})
	if err := queue.Enqueue(ctx, jobModel.Job{
		Type:    jobModel.JobTypeEmbed,
		Payload: jobModel.JobPayload{DocumentId: "doc-del"},
	}, jobModel.JobOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	result, err := o.DeleteDocument(ctx, "doc-del")
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if result.CancelledCount != 1 {
		t.Errorf("CancelledCount = %d, want 1", result.CancelledCount)
	}
	if _, found := docs.GetDocument(ctx, "doc-del"); found {
		t.Error("document record survived deletion")
	}
	segments, _ := docs.ListSegmentsByDocument(ctx, "doc-del")
	if len(segments) != 0 {
		t.Errorf("segments survived deletion: %d", len(segments))
	}

	//the async sweep should leave nothing for this document behind
	time.Sleep(10 * time.Millisecond)
	if _, ok := queue.Dequeue(ctx); ok {
		t.Error("a job for the deleted document is still dequeueable")
	}
}

func TestGetDocumentJobStatus(t *testing.T) {
	o, queue, docs := newOrchestrator(t)
	ctx := context.Background()

	if err := queue.Enqueue(ctx, jobModel.Job{
		Id:      "job-live",
		Type:    jobModel.JobTypeChunk,
		Payload: jobModel.JobPayload{DocumentId: "doc-status"},
	}, jobModel.JobOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	doc := docModel.Document{
		Id: "doc-status", DatasetId: "ds-1",
		IndexingStatus: docModel.IndexingChunking,
		ActiveJobIds:   []string{"job-live", "job-long-gone"},
	}
	_ = docs.SaveDocument(ctx, doc)

	status, err := o.GetDocumentJobStatus(ctx, "doc-status")
	if err != nil {
		t.Fatalf("GetDocumentJobStatus failed: %v", err)
	}
	if status.IndexingStatus != docModel.IndexingChunking {
		t.Errorf("IndexingStatus = %s", status.IndexingStatus)
	}
	//ids with no backing queue record are skipped, not errors
	if len(status.Jobs) != 1 || status.Jobs[0].Id != "job-live" {
		t.Errorf("Jobs = %+v, want only job-live", status.Jobs)
	}

	t.Run("Missing Document", func(t *testing.T) {
		if _, err := o.GetDocumentJobStatus(ctx, "ghost"); err == nil {
			t.Error("missing document did not error")
		}
	})
}
