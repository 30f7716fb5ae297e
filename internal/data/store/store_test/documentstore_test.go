package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/docpipeline/internal/data/redisStore"
	"github.com/akolanti/docpipeline/internal/data/store"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDocumentStore(t *testing.T) *store.RedisDocumentStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.TestDocumentStore(redisStore.NewTestStore(client))
}

func TestRedisDocumentStore_Documents(t *testing.T) {
	docs := newTestDocumentStore(t)
	ctx := context.Background()

	doc := docModel.Document{
		Id:             "doc-1",
		DatasetId:      "ds-1",
		Name:           "report.pdf",
		IndexingStatus: docModel.IndexingWaiting,
		CreatedAt:      time.Now(),
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := docs.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}
		got, found := docs.GetDocument(ctx, "doc-1")
		if !found {
			t.Fatal("document not found after save")
		}
		if got.Name != doc.Name || got.IndexingStatus != docModel.IndexingWaiting {
			t.Errorf("roundtrip mismatch: %+v", got)
		}
	})

	t.Run("List By Dataset", func(t *testing.T) {
		other := docModel.Document{Id: "doc-2", DatasetId: "ds-2", Name: "other.txt"}
		if err := docs.SaveDocument(ctx, other); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}

		listed, err := docs.ListDocumentsByDataset(ctx, "ds-1")
		if err != nil {
			t.Fatalf("ListDocumentsByDataset failed: %v", err)
		}
		if len(listed) != 1 || listed[0].Id != "doc-1" {
			t.Errorf("listed = %+v, want only doc-1", listed)
		}
	})

	t.Run("Delete Document", func(t *testing.T) {
		if err := docs.DeleteDocument(ctx, "doc-1"); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if _, found := docs.GetDocument(ctx, "doc-1"); found {
			t.Error("document still exists after delete")
		}
		listed, _ := docs.ListDocumentsByDataset(ctx, "ds-1")
		if len(listed) != 0 {
			t.Errorf("dataset index still lists deleted document: %+v", listed)
		}
	})
}

func TestRedisDocumentStore_Segments(t *testing.T) {
	docs := newTestDocumentStore(t)
	ctx := context.Background()

	segments := []docModel.Segment{
		{Id: "seg-1", DocumentId: "doc-1", Position: 0, Content: "first", Status: docModel.SegmentChunked},
		{Id: "seg-2", DocumentId: "doc-1", Position: 1, Content: "second", Status: docModel.SegmentChunked},
	}
	if err := docs.SaveSegments(ctx, segments); err != nil {
		t.Fatalf("SaveSegments failed: %v", err)
	}

	t.Run("List Ordered By Position", func(t *testing.T) {
		listed, err := docs.ListSegmentsByDocument(ctx, "doc-1")
		if err != nil {
			t.Fatalf("ListSegmentsByDocument failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("got %d segments, want 2", len(listed))
		}
		if listed[0].Position > listed[1].Position {
			t.Errorf("segments out of order: %+v", listed)
		}
	})

	t.Run("Resave Updates In Place", func(t *testing.T) {
		segments[0].Status = docModel.SegmentCompleted
		segments[0].Vector = []float32{0.1, 0.2}
		if err := docs.SaveSegments(ctx, segments[:1]); err != nil {
			t.Fatalf("SaveSegments failed: %v", err)
		}
		listed, _ := docs.ListSegmentsByDocument(ctx, "doc-1")
		if len(listed) != 2 {
			t.Fatalf("resave duplicated segments: got %d", len(listed))
		}
		for _, segment := range listed {
			if segment.Id == "seg-1" && len(segment.Vector) == 0 {
				t.Error("resaved segment lost its vector")
			}
		}
	})

	t.Run("Delete By Document", func(t *testing.T) {
		if err := docs.DeleteSegmentsByDocument(ctx, "doc-1"); err != nil {
			t.Fatalf("DeleteSegmentsByDocument failed: %v", err)
		}
		listed, _ := docs.ListSegmentsByDocument(ctx, "doc-1")
		if len(listed) != 0 {
			t.Errorf("segments remain after delete: %+v", listed)
		}
	})
}
