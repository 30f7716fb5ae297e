package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/data/redisStore"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

const (
	documentPrefix     = "doc:document:"
	segmentPrefix      = "doc:segment:"
	datasetDocsPrefix  = "doc:dataset:"
	documentSegsPrefix = "doc:docsegments:"
	datasetDocsSuffix  = ":documents"
	documentSegsSuffix = ":segments"
)

// RedisDocumentStore is the pipeline's window into the document subsystem:
// JSON records keyed by id, with set indexes dataset->documents and
// document->segments.
type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	inner := redisStore.GetRedisStore(ctx, config.RedisDocumentDB)
	if inner == nil {
		return nil
	}
	return &RedisDocumentStore{
		store:  inner,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, doc docModel.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, documentPrefix+doc.Id, data, 0); err != nil {
		return err
	}
	return s.store.SetAdd(ctx, datasetDocsKey(doc.DatasetId), doc.Id)
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, id string) (docModel.Document, bool) {
	var doc docModel.Document
	val, err := s.store.Get(ctx, documentPrefix+id)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("could not load document", "documentId", id, "error", err)
		}
		return doc, false
	}
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		s.logger.Error("corrupt document record", "documentId", id, "error", err)
		return doc, false
	}
	return doc, true
}

func (s *RedisDocumentStore) ListDocumentsByDataset(ctx context.Context, datasetId string) ([]docModel.Document, error) {
	ids, err := s.store.SetMembers(ctx, datasetDocsKey(datasetId))
	if err != nil {
		return nil, err
	}
	docs := make([]docModel.Document, 0, len(ids))
	for _, id := range ids {
		if doc, found := s.GetDocument(ctx, id); found {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	if doc, found := s.GetDocument(ctx, id); found {
		_ = s.store.SetRemove(ctx, datasetDocsKey(doc.DatasetId), id)
	}
	return s.store.Del(ctx, documentPrefix+id)
}

func (s *RedisDocumentStore) SaveSegments(ctx context.Context, segments []docModel.Segment) error {
	for _, segment := range segments {
		data, err := json.Marshal(segment)
		if err != nil {
			return err
		}
		if err := s.store.Set(ctx, segmentPrefix+segment.Id, data, 0); err != nil {
			return err
		}
		if err := s.store.SetAdd(ctx, documentSegsKey(segment.DocumentId), segment.Id); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisDocumentStore) ListSegmentsByDocument(ctx context.Context, documentId string) ([]docModel.Segment, error) {
	ids, err := s.store.SetMembers(ctx, documentSegsKey(documentId))
	if err != nil {
		return nil, err
	}
	segments := make([]docModel.Segment, 0, len(ids))
	for _, id := range ids {
		val, err := s.store.Get(ctx, segmentPrefix+id)
		if err != nil {
			if !s.store.IsNil(err) {
				s.logger.Error("could not load segment", "segmentId", id, "error", err)
			}
			continue
		}
		var segment docModel.Segment
		if err := json.Unmarshal([]byte(val), &segment); err != nil {
			s.logger.Error("corrupt segment record", "segmentId", id, "error", err)
			continue
		}
		segments = append(segments, segment)
	}
	//set members come back unordered
	sort.Slice(segments, func(i, j int) bool { return segments[i].Position < segments[j].Position })
	return segments, nil
}

func (s *RedisDocumentStore) DeleteSegmentsByDocument(ctx context.Context, documentId string) error {
	ids, err := s.store.SetMembers(ctx, documentSegsKey(documentId))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.store.Del(ctx, segmentPrefix+id); err != nil {
			return err
		}
	}
	return s.store.Del(ctx, documentSegsKey(documentId))
}

func datasetDocsKey(datasetId string) string {
	return datasetDocsPrefix + datasetId + datasetDocsSuffix
}

func documentSegsKey(documentId string) string {
	return documentSegsPrefix + documentId + documentSegsSuffix
}

// TestDocumentStore wires the store to a miniredis-backed client in tests.
func TestDocumentStore(inner *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  inner,
		logger: logger_i.NewLogger("test document store"),
	}
}
