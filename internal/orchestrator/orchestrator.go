package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

// Orchestrator layers document-lifecycle operations over the dispatcher and
// the queue: pause, resume, retry, cancellation and the two-phase deletion
// hook. It never interrupts a mid-handler job; cancellation is cooperative
// through document state that handlers re-check.
type Orchestrator struct {
	queue      jobModel.Queue
	documents  docModel.DocumentStore
	dispatcher *dispatcher.Dispatcher
	logger     *logger_i.Logger
}

type CancelResult struct {
	CancelledCount int `json:"cancelled_count"`
}

type DocumentJobStatus struct {
	DocumentId     string                  `json:"document_id"`
	IndexingStatus docModel.IndexingStatus `json:"indexing_status"`
	IsPaused       bool                    `json:"is_paused"`
	Error          string                  `json:"error,omitempty"`
	Jobs           []JobView               `json:"jobs"`
}

type JobView struct {
	Id           string             `json:"id"`
	Type         string             `json:"type"`
	Status       jobModel.JobStatus `json:"status"`
	AttemptsMade int                `json:"attempts_made"`
	CreatedAt    time.Time          `json:"created_at"`
}

func New(queue jobModel.Queue, documents docModel.DocumentStore, dispatch *dispatcher.Dispatcher) *Orchestrator {
	return &Orchestrator{
		queue:      queue,
		documents:  documents,
		dispatcher: dispatch,
		logger:     logger_i.NewLogger("Orchestrator"),
	}
}

// Pause flags the document so handlers stop advancing to the next stage.
// Jobs already mid-handler finish their own stage.
func (o *Orchestrator) Pause(ctx context.Context, documentId string, pausedBy string) error {
	doc, found := o.documents.GetDocument(ctx, documentId)
	if !found {
		return fmt.Errorf("document not found: %s", documentId)
	}
	if doc.IsPaused {
		return nil
	}
	doc.IsPaused = true
	doc.PausedBy = pausedBy
	doc.IndexingStatus = docModel.IndexingPaused
	if err := o.documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("pause document %s: %w", documentId, err)
	}
	o.logger.Info("Paused document", "documentId", documentId, "pausedBy", pausedBy)
	return nil
}

// Resume clears the pause flag and re-enqueues the appropriate stage job
// for this one document, mirroring the resume-service gating.
func (o *Orchestrator) Resume(ctx context.Context, documentId string, userId string) error {
	doc, found := o.documents.GetDocument(ctx, documentId)
	if !found {
		return fmt.Errorf("document not found: %s", documentId)
	}
	if !doc.IsPaused {
		return fmt.Errorf("document is not paused: %s", documentId)
	}
	doc.IsPaused = false
	doc.PausedBy = ""
	doc.IndexingStatus = docModel.IndexingWaiting
	if err := o.documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("resume document %s: %w", documentId, err)
	}
	return o.enqueueNextStage(ctx, doc, userId)
}

// Retry clears error state and re-enqueues from the last successful stage.
func (o *Orchestrator) Retry(ctx context.Context, documentId string) error {
	doc, found := o.documents.GetDocument(ctx, documentId)
	if !found {
		return fmt.Errorf("document not found: %s", documentId)
	}
	if doc.IndexingStatus != docModel.IndexingFailed && doc.Error == "" {
		return fmt.Errorf("document has no failed processing to retry: %s", documentId)
	}
	doc.Error = ""
	doc.IsPaused = false
	doc.IndexingStatus = docModel.IndexingWaiting
	if err := o.documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("retry document %s: %w", documentId, err)
	}
	return o.enqueueNextStage(ctx, doc, "")
}

// CancelAllProcessingJobs removes every queued job referencing the document
// and detaches active ones. Idempotent: zero matching jobs is a clean
// cancelledCount=0, not an error.
func (o *Orchestrator) CancelAllProcessingJobs(ctx context.Context, documentId string) (CancelResult, error) {
	cancelled, err := o.queue.RemoveByDocument(ctx, documentId)
	if err != nil {
		return CancelResult{}, fmt.Errorf("cancel jobs for document %s: %w", documentId, err)
	}

	if doc, found := o.documents.GetDocument(ctx, documentId); found {
		doc.ActiveJobIds = nil
		if err := o.documents.SaveDocument(ctx, doc); err != nil {
			o.logger.Error("Could not clear active job ids", "documentId", documentId, "error", err)
		}
	}

	o.logger.Info("Cancelled processing jobs", "documentId", documentId, "cancelledCount", cancelled)
	return CancelResult{CancelledCount: cancelled}, nil
}

// StopAllProcessingJobs is the broad best-effort sweep run after document
// deletion. It logs failures and never returns them; it runs fire-and-forget.
func (o *Orchestrator) StopAllProcessingJobs(ctx context.Context, reason string) {
	removed, err := o.queue.RemoveByTypes(ctx, jobModel.StageJobTypes()...)
	if err != nil {
		o.logger.Error("Queue sweep failed", "reason", reason, "error", err)
		return
	}
	o.logger.Info("Swept document-processing jobs", "reason", reason, "removed", removed)
}

// DeleteDocument is the deletion hook. Targeted cancellation is synchronous
// and strictly precedes removing the document record, so no handler writes
// to a disappearing document; the broad sweep runs afterward as an async
// safety net.
func (o *Orchestrator) DeleteDocument(ctx context.Context, documentId string) (CancelResult, error) {
	result, err := o.CancelAllProcessingJobs(ctx, documentId)
	if err != nil {
		return result, err
	}

	if err := o.documents.DeleteSegmentsByDocument(ctx, documentId); err != nil {
		return result, fmt.Errorf("delete segments for document %s: %w", documentId, err)
	}
	if err := o.documents.DeleteDocument(ctx, documentId); err != nil {
		return result, fmt.Errorf("delete document %s: %w", documentId, err)
	}

	go o.StopAllProcessingJobs(context.Background(), "document deleted: "+documentId)
	return result, nil
}

// GetDocumentJobStatus joins the document's active job ids against live
// queue state. Read-only; meant for UI polling.
func (o *Orchestrator) GetDocumentJobStatus(ctx context.Context, documentId string) (DocumentJobStatus, error) {
	doc, found := o.documents.GetDocument(ctx, documentId)
	if !found {
		return DocumentJobStatus{}, fmt.Errorf("document not found: %s", documentId)
	}

	status := DocumentJobStatus{
		DocumentId:     doc.Id,
		IndexingStatus: doc.IndexingStatus,
		IsPaused:       doc.IsPaused,
		Error:          doc.Error,
		Jobs:           []JobView{},
	}
	for _, jobId := range doc.ActiveJobIds {
		job, found := o.queue.GetJob(ctx, jobId)
		if !found {
			continue
		}
		status.Jobs = append(status.Jobs, JobView{
			Id:           job.Id,
			Type:         job.Type,
			Status:       job.Status,
			AttemptsMade: job.AttemptsMade,
			CreatedAt:    job.CreatedAt,
		})
	}
	return status, nil
}

// enqueueNextStage picks the re-entry job for a document from how far its
// segments got. No segments yet means parsing never finished; segments with
// vectors still unindexed re-enter at indexing; everything else re-enters
// at chunking, the pipeline's idempotent midpoint.
func (o *Orchestrator) enqueueNextStage(ctx context.Context, doc docModel.Document, userId string) error {
	segments, err := o.documents.ListSegmentsByDocument(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("load segments for document %s: %w", doc.Id, err)
	}

	jobType := jobModel.JobTypeChunk
	if len(doc.Pages) == 0 {
		jobType = jobModel.JobTypeParse
	} else if len(segments) > 0 && allEmbedded(segments) {
		jobType = jobModel.JobTypeIndex
	}

	payload := jobModel.JobPayload{
		DocumentId: doc.Id,
		DatasetId:  doc.DatasetId,
		UserId:     userId,
		SourcePath: doc.SourcePath,
	}
	jobId, err := o.dispatcher.Enqueue(ctx, jobType, payload, jobModel.JobOptions{})
	if err != nil {
		return err
	}

	doc.AddActiveJob(jobId)
	if err := o.documents.SaveDocument(ctx, doc); err != nil {
		o.logger.Error("Could not record active job id", "documentId", doc.Id, "jobId", jobId, "error", err)
	}
	o.logger.Info("Re-enqueued stage job", "documentId", doc.Id, "jobType", jobType, "jobId", jobId)
	return nil
}

func allEmbedded(segments []docModel.Segment) bool {
	for _, segment := range segments {
		if len(segment.Vector) == 0 {
			return false
		}
	}
	return true
}
