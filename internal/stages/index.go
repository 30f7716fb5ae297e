package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

type indexHandler struct {
	stages *Stages
}

func (h *indexHandler) JobType() string {
	return jobModel.JobTypeIndex
}

func (h *indexHandler) Handle(ctx context.Context, job jobModel.Job) error {
	doc, live := h.stages.liveDocument(ctx, job)
	if !live {
		return nil
	}
	if h.stages.vectors == nil {
		err := errors.New("no vector database configured")
		h.stages.failDocument(ctx, job, err)
		return err
	}

	doc, err := h.stages.enterStage(ctx, doc, job, docModel.IndexingIndexing)
	if err != nil {
		return err
	}

	segments, err := h.stages.documents.ListSegmentsByDocument(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("load segments for document %s: %w", doc.Id, err)
	}
	if len(segments) == 0 {
		err = fmt.Errorf("index document %s: no segments to index", doc.Id)
		h.stages.failDocument(ctx, job, err)
		return err
	}
	for _, segment := range segments {
		if len(segment.Vector) == 0 {
			err = fmt.Errorf("index document %s: segment %s is not embedded yet", doc.Id, segment.Id)
			h.stages.failDocument(ctx, job, err)
			return err
		}
	}

	if err := h.stages.vectors.CreateCollection(ctx, h.stages.collection); err != nil {
		err = fmt.Errorf("ensure collection for document %s: %w", doc.Id, err)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	//drop whatever an earlier run put there so a reindex never duplicates
	if err := h.stages.vectors.DeleteByDocument(ctx, h.stages.collection, doc.Id); err != nil {
		err = fmt.Errorf("clear stale points for document %s: %w", doc.Id, err)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	if err := h.stages.vectors.UpsertSegments(ctx, h.stages.collection, segments); err != nil {
		err = fmt.Errorf("index document %s: %w", doc.Id, err)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	h.stages.setStageProgress(&doc, jobModel.JobTypeIndex, 100)
	if err := h.stages.documents.SaveDocument(ctx, doc); err != nil {
		h.stages.logger.Error("Could not record index progress", "documentId", doc.Id, "error", err)
	}
	h.stages.logger.Info("Indexed document", "documentId", doc.Id, "segments", len(segments))
	return h.stages.completeDocument(ctx, job)
}
