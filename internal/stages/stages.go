package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/embedding"
	"github.com/akolanti/docpipeline/internal/registry"
	"github.com/akolanti/docpipeline/internal/vectorDB"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

// Stages owns the four pipeline handlers. They chain parse -> chunking ->
// embedding -> indexing by each enqueueing the next stage only after its
// own stage succeeded, and re-check document state before doing so:
// cancellation and pause are cooperative, never preemptive.
type Stages struct {
	documents  docModel.DocumentStore
	dispatcher *dispatcher.Dispatcher
	embedder   embedding.Embedder
	vectors    vectorDB.DataProcessor
	collection string
	logger     *logger_i.Logger
}

func New(documents docModel.DocumentStore, dispatch *dispatcher.Dispatcher, embedder embedding.Embedder, vectors vectorDB.DataProcessor, collection string) *Stages {
	return &Stages{
		documents:  documents,
		dispatcher: dispatch,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		logger:     logger_i.NewLogger("Stages"),
	}
}

// RegisterAll populates the registry with every stage handler. This is the
// startup-time discovery step; a duplicate registration aborts bootstrap.
func (s *Stages) RegisterAll(reg *registry.Registry) error {
	handlers := []jobModel.Handler{
		&parseHandler{s},
		&chunkHandler{s},
		&embedHandler{s},
		&indexHandler{s},
	}
	for _, handler := range handlers {
		if err := reg.Register(handler); err != nil {
			return err
		}
	}
	return nil
}

// liveDocument loads the document a job references. A missing document
// means it was deleted or cancelled mid-flight: the handler must no-op, not
// error, or the retry policy would hammer a corpse. A paused document
// equally stops the stage before any work is spent.
func (s *Stages) liveDocument(ctx context.Context, job jobModel.Job) (docModel.Document, bool) {
	doc, found := s.documents.GetDocument(ctx, job.Payload.DocumentId)
	if !found {
		s.logger.Warn("Document gone, skipping stage", "documentId", job.Payload.DocumentId, "jobType", job.Type)
		return doc, false
	}
	if doc.IsPaused {
		s.logger.Info("Document paused, skipping stage", "documentId", doc.Id, "jobType", job.Type)
		return doc, false
	}
	return doc, true
}

func (s *Stages) enterStage(ctx context.Context, doc docModel.Document, job jobModel.Job, status docModel.IndexingStatus) (docModel.Document, error) {
	doc.IndexingStatus = status
	if doc.ProcessingMetadata == nil {
		doc.ProcessingMetadata = make(map[string]string)
	}
	doc.ProcessingMetadata[job.Type] = "job " + job.Id
	doc.AddActiveJob(job.Id)
	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		return doc, fmt.Errorf("enter stage %s for document %s: %w", job.Type, doc.Id, err)
	}
	return doc, nil
}

// advance commits the next stage. The document is re-read first: this is
// the cancellation-race guard, so a handler finishing late for a deleted or
// paused document stops here instead of resurrecting the pipeline.
func (s *Stages) advance(ctx context.Context, job jobModel.Job, nextType string) error {
	doc, found := s.documents.GetDocument(ctx, job.Payload.DocumentId)
	if !found {
		s.logger.Warn("Document gone before next stage, stopping chain", "documentId", job.Payload.DocumentId)
		return nil
	}
	doc.RemoveActiveJob(job.Id)
	if doc.IsPaused {
		s.logger.Info("Document paused, not advancing", "documentId", doc.Id, "nextType", nextType)
		return s.documents.SaveDocument(ctx, doc)
	}

	payload := job.Payload
	nextId, err := s.dispatcher.Enqueue(ctx, nextType, payload, jobModel.JobOptions{})
	if err != nil {
		return err
	}
	doc.AddActiveJob(nextId)
	return s.documents.SaveDocument(ctx, doc)
}

func (s *Stages) completeDocument(ctx context.Context, job jobModel.Job) error {
	doc, found := s.documents.GetDocument(ctx, job.Payload.DocumentId)
	if !found {
		return nil
	}
	doc.RemoveActiveJob(job.Id)
	doc.IndexingStatus = docModel.IndexingCompleted
	doc.CompletedAt = time.Now()
	doc.Error = ""
	return s.documents.SaveDocument(ctx, doc)
}

// failDocument marks the document only once the job's retry budget is gone;
// earlier attempts leave it recoverable.
func (s *Stages) failDocument(ctx context.Context, job jobModel.Job, stageErr error) {
	if job.AttemptsMade < job.MaxAttempts {
		return
	}
	doc, found := s.documents.GetDocument(ctx, job.Payload.DocumentId)
	if !found {
		return
	}
	doc.RemoveActiveJob(job.Id)
	doc.IndexingStatus = docModel.IndexingFailed
	doc.Error = stageErr.Error()
	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		s.logger.Error("Could not record document failure", "documentId", doc.Id, "error", err)
	}
}

func (s *Stages) setStageProgress(doc *docModel.Document, stage string, percent int) {
	if doc.StageProgress == nil {
		doc.StageProgress = make(map[string]int)
	}
	doc.StageProgress[stage] = percent
}
