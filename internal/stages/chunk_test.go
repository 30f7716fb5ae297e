package stages

import (
	"context"
	"strings"
	"testing"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/data/store"
	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

func TestSplitTextIntoChunks(t *testing.T) {
	t.Run("Short Text Single Chunk", func(t *testing.T) {
		chunks := splitTextIntoChunks("short text", 100, 10)
		if len(chunks) != 1 || chunks[0] != "short text" {
			t.Errorf("chunks = %v", chunks)
		}
	})

	t.Run("Respects Size Limit", func(t *testing.T) {
		text := strings.Repeat("some words here. ", 200)
		chunks := splitTextIntoChunks(text, 200, 30)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, chunk := range chunks {
			if len(chunk) > 200+30 {
				t.Errorf("chunk %d is %d chars, exceeds limit+overlap", i, len(chunk))
			}
		}
	})

	t.Run("Consecutive Chunks Overlap", func(t *testing.T) {
		text := strings.Repeat("alpha beta gamma delta ", 100)
		overlap := 20
		chunks := splitTextIntoChunks(text, 150, overlap)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		prevTail := chunks[0][len(chunks[0])-overlap:]
		if !strings.HasPrefix(chunks[1], prevTail) {
			t.Errorf("chunk 1 does not start with the tail of chunk 0:\ntail: %q\nnext: %q", prevTail, chunks[1][:overlap])
		}
	})

	t.Run("No Separator Hard Cut", func(t *testing.T) {
		text := strings.Repeat("x", 500)
		chunks := splitTextIntoChunks(text, 100, 10)
		if len(chunks) != 1 || len(chunks[0]) != 100 {
			t.Errorf("hard cut produced %d chunks, first len %d", len(chunks), len(chunks[0]))
		}
	})

	t.Run("Prefers Paragraph Breaks", func(t *testing.T) {
		text := strings.Repeat("a paragraph of text\n\n", 30)
		for _, chunk := range splitTextIntoChunks(text, 100, 0) {
			if strings.Contains(chunk, "\n\n") && len(chunk) > 100 {
				t.Errorf("oversize chunk crossed a paragraph break: %q", chunk)
			}
		}
	})
}

func TestBuildSegments(t *testing.T) {
	doc := docModel.Document{
		Id:        "doc-1",
		DatasetId: "ds-1",
		Pages: []docModel.DocPage{
			{Number: 1, Content: strings.Repeat("page one words. ", 100)},
			{Number: 2, Content: "page two"},
		},
	}

	segments := buildSegments(doc)
	if len(segments) < 3 {
		t.Fatalf("got %d segments, want several from page 1 plus one from page 2", len(segments))
	}

	for i, segment := range segments {
		if segment.Position != i {
			t.Errorf("segment %d has position %d", i, segment.Position)
		}
		if segment.DocumentId != "doc-1" || segment.DatasetId != "ds-1" {
			t.Errorf("segment %d lost its parent ids: %+v", i, segment)
		}
		if segment.Status != docModel.SegmentChunked {
			t.Errorf("segment %d status = %s", i, segment.Status)
		}
		if segment.Id == "" {
			t.Errorf("segment %d has no id", i)
		}
	}

	last := segments[len(segments)-1]
	if last.PageNum != 2 || last.Content != "page two" {
		t.Errorf("last segment = %+v, want page 2 content", last)
	}
}

func TestChunkHandler(t *testing.T) {
	ctx := context.Background()

	newChunkStage := func(t *testing.T) (*chunkHandler, *store.InMemoryQueue, *store.InMemoryDocumentStore) {
		t.Helper()
		queue := store.InitInMemoryQueue()
		docs := store.InitInMemoryDocumentStore()
		stageSet := New(docs, dispatcher.New(queue), nil, nil, config.VectorCollectionName)
		return &chunkHandler{stageSet}, queue, docs
	}

	t.Run("Chunks And Advances To Embedding", func(t *testing.T) {
		handler, queue, docs := newChunkStage(t)
		_ = docs.SaveDocument(ctx, docModel.Document{
			Id: "doc-1", DatasetId: "ds-1",
			Pages: []docModel.DocPage{{Number: 1, Content: "hello world"}},
		})

		job := jobModel.Job{
			Id: "job-1", Type: jobModel.JobTypeChunk,
			Payload:     jobModel.JobPayload{DocumentId: "doc-1", DatasetId: "ds-1"},
			MaxAttempts: 3, AttemptsMade: 1,
		}
		if err := handler.Handle(ctx, job); err != nil {
			t.Fatalf("Handle failed: %v", err)
		}

		segments, _ := docs.ListSegmentsByDocument(ctx, "doc-1")
		if len(segments) == 0 {
			t.Fatal("no segments written")
		}
		next, ok := queue.Dequeue(ctx)
		if !ok || next.Type != jobModel.JobTypeEmbed {
			t.Errorf("next job = %+v, want embedding", next)
		}
	})

	t.Run("Rerun Replaces Segments", func(t *testing.T) {
		handler, _, docs := newChunkStage(t)
		_ = docs.SaveDocument(ctx, docModel.Document{
			Id: "doc-2", DatasetId: "ds-1",
			Pages: []docModel.DocPage{{Number: 1, Content: "same content"}},
		})
		job := jobModel.Job{
			Id: "job-2", Type: jobModel.JobTypeChunk,
			Payload:     jobModel.JobPayload{DocumentId: "doc-2"},
			MaxAttempts: 3, AttemptsMade: 1,
		}

		if err := handler.Handle(ctx, job); err != nil {
			t.Fatalf("first Handle failed: %v", err)
		}
		first, _ := docs.ListSegmentsByDocument(ctx, "doc-2")
		if err := handler.Handle(ctx, job); err != nil {
			t.Fatalf("second Handle failed: %v", err)
		}
		second, _ := docs.ListSegmentsByDocument(ctx, "doc-2")
		if len(second) != len(first) {
			t.Errorf("rerun changed segment count: %d -> %d", len(first), len(second))
		}
	})

	t.Run("Paused Document Is A NoOp", func(t *testing.T) {
		handler, queue, docs := newChunkStage(t)
		_ = docs.SaveDocument(ctx, docModel.Document{
			Id: "doc-paused", IsPaused: true,
			Pages: []docModel.DocPage{{Number: 1, Content: "text"}},
		})
		job := jobModel.Job{
			Id: "job-3", Type: jobModel.JobTypeChunk,
			Payload: jobModel.JobPayload{DocumentId: "doc-paused"},
		}
		if err := handler.Handle(ctx, job); err != nil {
			t.Fatalf("Handle on paused doc errored: %v", err)
		}
		if segments, _ := docs.ListSegmentsByDocument(ctx, "doc-paused"); len(segments) != 0 {
			t.Error("paused document was chunked anyway")
		}
		if _, ok := queue.Dequeue(ctx); ok {
			t.Error("paused document advanced to the next stage")
		}
	})

	t.Run("Deleted Document Is A NoOp", func(t *testing.T) {
		handler, queue, _ := newChunkStage(t)
		job := jobModel.Job{
			Id: "job-4", Type: jobModel.JobTypeChunk,
			Payload: jobModel.JobPayload{DocumentId: "doc-ghost"},
		}
		if err := handler.Handle(ctx, job); err != nil {
			t.Fatalf("Handle on missing doc errored: %v", err)
		}
		if _, ok := queue.Dequeue(ctx); ok {
			t.Error("missing document advanced to the next stage")
		}
	})

	t.Run("No Pages Fails Document When Budget Spent", func(t *testing.T) {
		handler, _, docs := newChunkStage(t)
		_ = docs.SaveDocument(ctx, docModel.Document{Id: "doc-unparsed"})
		job := jobModel.Job{
			Id: "job-5", Type: jobModel.JobTypeChunk,
			Payload:     jobModel.JobPayload{DocumentId: "doc-unparsed"},
			MaxAttempts: 1, AttemptsMade: 1,
		}
		if err := handler.Handle(ctx, job); err == nil {
			t.Fatal("expected an error for a document with no pages")
		}
		failed, _ := docs.GetDocument(ctx, "doc-unparsed")
		if failed.IndexingStatus != docModel.IndexingFailed || failed.Error == "" {
			t.Errorf("document after final attempt = %+v, want failed with error", failed)
		}
	})
}
