package resume

import (
	"context"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

// Service re-enqueues work for documents whose processing never reached a
// terminal state, typically after a crash or a manual queue clear. It is
// idempotent by gating on segment status, not on queue contents.
type Service struct {
	documents  docModel.DocumentStore
	dispatcher *dispatcher.Dispatcher
	logger     *logger_i.Logger
}

type Summary struct {
	QueuedJobsCount int      `json:"queued_jobs_count"`
	DocumentNames   []string `json:"document_names"`
}

func NewService(documents docModel.DocumentStore, dispatch *dispatcher.Dispatcher) *Service {
	return &Service{
		documents:  documents,
		dispatcher: dispatch,
		logger:     logger_i.NewLogger("ResumeService"),
	}
}

// ResumeDataset scans one dataset and enqueues exactly one chunking job per
// document that still has resumable segments. A failure on one document is
// logged and skipped; the scan always finishes.
func (s *Service) ResumeDataset(ctx context.Context, datasetId string, userId string) (Summary, error) {
	summary := Summary{DocumentNames: []string{}}

	docs, err := s.documents.ListDocumentsByDataset(ctx, datasetId)
	if err != nil {
		return summary, err
	}
	s.logger.Info("Scanning dataset for incomplete documents", "datasetId", datasetId, "documents", len(docs))

	for _, doc := range docs {
		if doc.IndexingStatus == docModel.IndexingCompleted {
			continue
		}

		segments, err := s.documents.ListSegmentsByDocument(ctx, doc.Id)
		if err != nil {
			s.logger.Error("Could not load segments, skipping document", "documentId", doc.Id, "error", err)
			continue
		}
		if len(segments) == 0 {
			//never chunked; nothing to resume from
			continue
		}
		if !anyResumable(segments) {
			continue
		}

		payload := jobModel.JobPayload{
			DocumentId: doc.Id,
			DatasetId:  datasetId,
			UserId:     userId,
			EmbeddingConfig: &jobModel.EmbeddingConfig{
				Provider:  config.EmbeddingProvider(),
				Model:     config.GoogleEmbeddingModel,
				Dimension: config.EmbeddingOutputDimensionality,
			},
		}
		if _, err := s.dispatcher.Enqueue(ctx, jobModel.JobTypeChunk, payload, jobModel.JobOptions{}); err != nil {
			s.logger.Error("Could not enqueue resume job, skipping document", "documentId", doc.Id, "error", err)
			continue
		}

		s.logger.Info("Resumed document", "documentId", doc.Id, "name", doc.Name)
		summary.QueuedJobsCount++
		summary.DocumentNames = append(summary.DocumentNames, doc.Name)
	}
	return summary, nil
}

func anyResumable(segments []docModel.Segment) bool {
	for _, segment := range segments {
		if segment.Status.Resumable() {
			return true
		}
	}
	return false
}
