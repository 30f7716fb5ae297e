package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/google/uuid"
)

type chunkHandler struct {
	stages *Stages
}

func (h *chunkHandler) JobType() string {
	return jobModel.JobTypeChunk
}

func (h *chunkHandler) Handle(ctx context.Context, job jobModel.Job) error {
	doc, live := h.stages.liveDocument(ctx, job)
	if !live {
		return nil
	}
	if len(doc.Pages) == 0 {
		err := fmt.Errorf("chunk document %s: document has no parsed pages", doc.Id)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	doc, err := h.stages.enterStage(ctx, doc, job, docModel.IndexingChunking)
	if err != nil {
		return err
	}

	//idempotent per document+stage: a rerun replaces prior segments instead
	//of appending duplicates
	if err := h.stages.documents.DeleteSegmentsByDocument(ctx, doc.Id); err != nil {
		return fmt.Errorf("clear segments for document %s: %w", doc.Id, err)
	}

	segments := buildSegments(doc)
	if err := h.stages.documents.SaveSegments(ctx, segments); err != nil {
		err = fmt.Errorf("save segments for document %s: %w", doc.Id, err)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	h.stages.setStageProgress(&doc, jobModel.JobTypeChunk, 100)
	if err := h.stages.documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save chunked document %s: %w", doc.Id, err)
	}
	h.stages.logger.Info("Chunked document", "documentId", doc.Id, "segments", len(segments))
	return h.stages.advance(ctx, job, jobModel.JobTypeEmbed)
}

func buildSegments(doc docModel.Document) []docModel.Segment {
	var segments []docModel.Segment
	position := 0
	now := time.Now()

	for _, page := range doc.Pages {
		for _, text := range splitTextIntoChunks(page.Content, config.ChunkSizeLimit, config.ChunkOverlap) {
			segments = append(segments, docModel.Segment{
				Id:         uuid.New().String(),
				DocumentId: doc.Id,
				DatasetId:  doc.DatasetId,
				Position:   position,
				PageNum:    page.Number,
				Content:    text,
				Status:     docModel.SegmentChunked,
				CreatedAt:  now,
			})
			position++
		}
	}
	return segments
}

func splitTextIntoChunks(text string, limit int, overlap int) []string {
	var chunks []string

	// If text is already small enough, just return it
	if len(text) <= limit {
		return []string{text}
	}

	// Separators ordered from "best" to "worst" for semantic meaning
	separators := []string{"\n\n", "\n", ". ", " ", ""}

	var splitChar string
	found := false
	for _, s := range separators {
		if strings.Contains(text, s) {
			splitChar = s
			found = true
			break
		}
	}

	if !found {
		// Hard cut if no separator found (rare)
		return []string{text[:limit]}
	}

	parts := strings.Split(text, splitChar)
	var currentChunk strings.Builder

	for _, part := range parts {
		// If adding the part exceeds the limit
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			// Handle overlap: start the next chunk with the end of the previous one
			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 && splitChar != "" {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}
