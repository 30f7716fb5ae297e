package vectorDB

import (
	"context"

	"github.com/akolanti/docpipeline/internal/domain/docModel"
)

type DataProcessor interface {
	CreateCollection(ctx context.Context, collectionName string) error
	UpsertSegments(ctx context.Context, collectionName string, segments []docModel.Segment) error

	// DeleteByDocument clears every point for a document before reindexing
	// and on document deletion.
	DeleteByDocument(ctx context.Context, collectionName string, documentId string) error
}
