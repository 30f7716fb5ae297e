package docModel

import (
	"context"
	"time"
)

type IndexingStatus string

const (
	IndexingWaiting   IndexingStatus = "waiting"
	IndexingParsing   IndexingStatus = "parsing"
	IndexingChunking  IndexingStatus = "chunking"
	IndexingEmbedding IndexingStatus = "embedding"
	IndexingIndexing  IndexingStatus = "indexing"
	IndexingCompleted IndexingStatus = "completed"
	IndexingFailed    IndexingStatus = "failed"
	IndexingPaused    IndexingStatus = "paused"
)

type SegmentStatus string

const (
	SegmentWaiting   SegmentStatus = "waiting"
	SegmentChunked   SegmentStatus = "chunked"
	SegmentEmbedding SegmentStatus = "embedding"
	SegmentCompleted SegmentStatus = "completed"
	SegmentFailed    SegmentStatus = "failed"
)

// Resumable reports whether a segment in this state still needs pipeline
// work. Failed segments are retried through the document-level retry path,
// not the resume scan.
func (s SegmentStatus) Resumable() bool {
	return s == SegmentWaiting || s == SegmentChunked || s == SegmentEmbedding
}

type DocPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

type Document struct {
	Id             string         `json:"id"`
	DatasetId      string         `json:"dataset_id"`
	Name           string         `json:"name"`
	SourcePath     string         `json:"source_path,omitempty"`
	IndexingStatus IndexingStatus `json:"indexing_status"`

	// Per-stage detail: stage name -> free-form progress note.
	ProcessingMetadata map[string]string `json:"processing_metadata,omitempty"`
	StageProgress      map[string]int    `json:"stage_progress,omitempty"`
	ActiveJobIds       []string          `json:"active_job_ids,omitempty"`

	Pages []DocPage `json:"pages,omitempty"`

	Error       string    `json:"error,omitempty"`
	IsPaused    bool      `json:"is_paused"`
	PausedBy    string    `json:"paused_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (d *Document) AddActiveJob(jobId string) {
	for _, id := range d.ActiveJobIds {
		if id == jobId {
			return
		}
	}
	d.ActiveJobIds = append(d.ActiveJobIds, jobId)
}

func (d *Document) RemoveActiveJob(jobId string) {
	kept := d.ActiveJobIds[:0]
	for _, id := range d.ActiveJobIds {
		if id != jobId {
			kept = append(kept, id)
		}
	}
	d.ActiveJobIds = kept
}

type Segment struct {
	Id         string        `json:"id"`
	DocumentId string        `json:"document_id"`
	DatasetId  string        `json:"dataset_id"`
	Position   int           `json:"position"`
	PageNum    int           `json:"page_num"`
	Content    string        `json:"content"`
	Vector     []float32     `json:"vector,omitempty"`
	Status     SegmentStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// DocumentStore is the pipeline's view of the document subsystem. Documents
// and segments are owned elsewhere; the pipeline mutates status fields and
// segment content for the stages it runs.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (Document, bool)
	ListDocumentsByDataset(ctx context.Context, datasetId string) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error

	SaveSegments(ctx context.Context, segments []Segment) error
	ListSegmentsByDocument(ctx context.Context, documentId string) ([]Segment, error)
	DeleteSegmentsByDocument(ctx context.Context, documentId string) error
}
