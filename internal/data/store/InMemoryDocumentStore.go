package store

import (
	"context"
	"sync"

	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem DocumentStore")

type InMemoryDocumentStore struct {
	mu        *sync.RWMutex
	documents map[string]docModel.Document
	segments  map[string][]docModel.Segment
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		mu:        new(sync.RWMutex),
		documents: make(map[string]docModel.Document),
		segments:  make(map[string][]docModel.Segment),
	}
}

func (s *InMemoryDocumentStore) SaveDocument(ctx context.Context, doc docModel.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Id] = doc
	return nil
}

func (s *InMemoryDocumentStore) GetDocument(ctx context.Context, id string) (docModel.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, found := s.documents[id]
	return doc, found
}

func (s *InMemoryDocumentStore) ListDocumentsByDataset(ctx context.Context, datasetId string) ([]docModel.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []docModel.Document
	for _, doc := range s.documents {
		if doc.DatasetId == datasetId {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *InMemoryDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	inMemLogger.Debug("deleted document", "documentId", id)
	return nil
}

func (s *InMemoryDocumentStore) SaveSegments(ctx context.Context, segments []docModel.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, segment := range segments {
		existing := s.segments[segment.DocumentId]
		replaced := false
		for i, old := range existing {
			if old.Id == segment.Id {
				existing[i] = segment
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, segment)
		}
		s.segments[segment.DocumentId] = existing
	}
	return nil
}

func (s *InMemoryDocumentStore) ListSegmentsByDocument(ctx context.Context, documentId string) ([]docModel.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segments := make([]docModel.Segment, len(s.segments[documentId]))
	copy(segments, s.segments[documentId])
	return segments, nil
}

func (s *InMemoryDocumentStore) DeleteSegmentsByDocument(ctx context.Context, documentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, documentId)
	return nil
}
