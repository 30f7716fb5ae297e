package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

type embedHandler struct {
	stages *Stages
}

func (h *embedHandler) JobType() string {
	return jobModel.JobTypeEmbed
}

func (h *embedHandler) Handle(ctx context.Context, job jobModel.Job) error {
	doc, live := h.stages.liveDocument(ctx, job)
	if !live {
		return nil
	}
	if h.stages.embedder == nil {
		err := errors.New("no embedding provider configured")
		h.stages.failDocument(ctx, job, err)
		return err
	}

	doc, err := h.stages.enterStage(ctx, doc, job, docModel.IndexingEmbedding)
	if err != nil {
		return err
	}

	segments, err := h.stages.documents.ListSegmentsByDocument(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("load segments for document %s: %w", doc.Id, err)
	}
	if len(segments) == 0 {
		err = fmt.Errorf("embed document %s: no segments to embed", doc.Id)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	//segments already carrying a vector are skipped, so a retried embed
	//job only pays for what the previous attempt did not finish
	pending := make([]docModel.Segment, 0, len(segments))
	for _, segment := range segments {
		if len(segment.Vector) == 0 {
			pending = append(pending, segment)
		}
	}

	embedded := len(segments) - len(pending)
	for start := 0; start < len(pending); start += config.EmbeddingBatchSize {
		end := start + config.EmbeddingBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, segment := range batch {
			texts[i] = segment.Content
		}

		vectors, err := h.stages.embedder.BatchEmbedding(ctx, texts)
		if err != nil {
			err = fmt.Errorf("embedding batch failed for document %s: %w", doc.Id, err)
			h.stages.failDocument(ctx, job, err)
			return err
		}
		if len(vectors) != len(batch) {
			err = fmt.Errorf("embedding batch for document %s: got %d vectors for %d segments", doc.Id, len(vectors), len(batch))
			h.stages.failDocument(ctx, job, err)
			return err
		}

		for i := range batch {
			batch[i].Vector = vectors[i]
			batch[i].Status = docModel.SegmentCompleted
		}
		if err := h.stages.documents.SaveSegments(ctx, batch); err != nil {
			err = fmt.Errorf("save embedded segments for document %s: %w", doc.Id, err)
			h.stages.failDocument(ctx, job, err)
			return err
		}

		embedded += len(batch)
		h.stages.setStageProgress(&doc, jobModel.JobTypeEmbed, embedded*100/len(segments))
		if err := h.stages.documents.SaveDocument(ctx, doc); err != nil {
			h.stages.logger.Error("Could not record embed progress", "documentId", doc.Id, "error", err)
		}
	}

	h.stages.logger.Info("Embedded document", "documentId", doc.Id, "segments", len(segments), "newlyEmbedded", len(pending))
	return h.stages.advance(ctx, job, jobModel.JobTypeIndex)
}
