package retrieval

import (
	"context"
	"strings"

	"github.com/docquery/docquery-backend/internal/ingestion/chunker"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/vectorindex"
)

// Searcher is the slice of the vector index retrieval depends on.
type Searcher interface {
	Search(ctx context.Context, query string, n int, filter map[string]any) []vectorindex.Result
	GetChunks(ctx context.Context, documentID string) []vectorindex.ChunkRecord
	IndexDocument(ctx context.Context, documentID string, chunks []chunker.Chunk, meta vectorindex.DocumentMeta) bool
	DeleteDocument(ctx context.Context, documentID string) bool
	Stats(ctx context.Context) vectorindex.Stats
}

// Service narrows every index lookup to one tenant. The tenant filter is
// applied last so callers cannot widen or redirect the scope.
type Service struct {
	log   *logger.Logger
	index Searcher
}

func New(log *logger.Logger, index Searcher) *Service {
	return &Service{
		log:   log.With("service", "RetrievalService"),
		index: index,
	}
}

// Retrieve runs a similarity search scoped to the tenant. Extra filter keys
// are honored, but tenant_id always comes from the tenantID argument.
func (s *Service) Retrieve(ctx context.Context, tenantID, query string, n int, filter map[string]any) []vectorindex.Result {
	if strings.TrimSpace(query) == "" {
		return []vectorindex.Result{}
	}

	merged := make(map[string]any, len(filter)+1)
	for k, v := range filter {
		merged[k] = v
	}
	merged["tenant_id"] = tenantID

	results := s.index.Search(ctx, query, n, merged)
	s.log.Debug("Context retrieved", "tenant_id", tenantID, "requested", n, "returned", len(results))
	return results
}

// DocumentChunks returns a document's indexed chunks when the document
// belongs to the tenant. Records without an owner are treated as foreign:
// only a matching tenant_id passes.
func (s *Service) DocumentChunks(ctx context.Context, tenantID, documentID string) []vectorindex.ChunkRecord {
	records := s.index.GetChunks(ctx, documentID)
	out := make([]vectorindex.ChunkRecord, 0, len(records))
	for _, r := range records {
		if toString(r.Metadata["tenant_id"]) != tenantID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
