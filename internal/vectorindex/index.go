package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/docquery/docquery-backend/internal/ingestion/chunker"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/platform/vectorstore"
)

// Embedder is the slice of the OpenAI client the index needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// DocumentMeta travels into every chunk payload so search results carry
// enough context to be cited without a relational lookup.
type DocumentMeta struct {
	TenantID string
	Filename string
	FileType string
	Title    string
}

type Result struct {
	Key        string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity_score"`
	Rank       int            `json:"rank"`
}

type ChunkRecord struct {
	Key      string         `json:"id"`
	ChunkID  int            `json:"chunk_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type Stats struct {
	TotalChunks     int       `json:"total_chunks"`
	UniqueDocuments int       `json:"unique_documents"`
	Collection      string    `json:"collection_name"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Index implements the chunk indexing contract. Backend faults never
// propagate as errors: indexing and deletion report success booleans and
// search degrades to an empty result, all with logging.
type Index struct {
	log        *logger.Logger
	store      vectorstore.VectorStore
	embed      Embedder
	collection string
}

func New(log *logger.Logger, store vectorstore.VectorStore, embed Embedder, collection string) *Index {
	if collection == "" {
		collection = "documents"
	}
	return &Index{
		log:        log.With("service", "VectorIndex"),
		store:      store,
		embed:      embed,
		collection: collection,
	}
}

// ChunkKey is the stable vector id for a document chunk.
func ChunkKey(documentID string, chunkID int) string {
	return fmt.Sprintf("doc_%s_chunk_%d", documentID, chunkID)
}

// IndexDocument embeds all chunks in one batch and upserts them atomically.
// Either every chunk becomes searchable or none do.
func (i *Index) IndexDocument(ctx context.Context, documentID string, chunks []chunker.Chunk, meta DocumentMeta) bool {
	log := i.log.With("document_id", documentID, "tenant_id", meta.TenantID)
	if len(chunks) == 0 {
		log.Warn("No chunks to index")
		return false
	}

	inputs := make([]string, len(chunks))
	for idx, c := range chunks {
		inputs[idx] = c.Content
	}
	embeddings, err := i.embed.Embed(ctx, inputs)
	if err != nil {
		log.Error("Chunk embedding failed", "chunks", len(chunks), "error", err)
		return false
	}
	if len(embeddings) != len(chunks) {
		log.Error("Embedding count mismatch", "chunks", len(chunks), "embeddings", len(embeddings))
		return false
	}

	indexedAt := time.Now().UTC().Format(time.RFC3339)
	vectors := make([]vectorstore.Vector, 0, len(chunks))
	for idx, c := range chunks {
		vectors = append(vectors, vectorstore.Vector{
			ID:      ChunkKey(documentID, c.Index),
			Values:  embeddings[idx],
			Content: c.Content,
			Metadata: map[string]any{
				"document_id":  documentID,
				"tenant_id":    meta.TenantID,
				"chunk_id":     c.Index,
				"chunk_size":   c.Size,
				"filename":     meta.Filename,
				"file_type":    meta.FileType,
				"title":        meta.Title,
				"total_chunks": len(chunks),
				"indexed_at":   indexedAt,
			},
		})
	}

	if err := i.store.Upsert(ctx, vectors); err != nil {
		log.Error("Vector upsert failed", "chunks", len(chunks), "error", err)
		return false
	}
	log.Info("Document indexed", "chunks", len(chunks))
	return true
}

// Search embeds the query and returns ranked hits, best first. Any backend
// or embedding failure yields an empty slice, never an error.
func (i *Index) Search(ctx context.Context, query string, n int, filter map[string]any) []Result {
	if n <= 0 {
		n = 5
	}
	embeddings, err := i.embed.Embed(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		i.log.Error("Query embedding failed", "error", err)
		return []Result{}
	}

	matches, err := i.store.Query(ctx, embeddings[0], n, filter)
	if err != nil {
		i.log.Error("Vector query failed", "error", err)
		return []Result{}
	}

	out := make([]Result, 0, len(matches))
	for rank, m := range matches {
		out = append(out, Result{
			Key:        m.ID,
			Content:    m.Content,
			Metadata:   m.Metadata,
			Similarity: m.Score,
			Rank:       rank + 1,
		})
	}
	return out
}

// GetChunks returns a document's chunks ordered by chunk id.
func (i *Index) GetChunks(ctx context.Context, documentID string) []ChunkRecord {
	records, err := i.store.FetchByFilter(ctx, map[string]any{"document_id": documentID})
	if err != nil {
		i.log.Error("Chunk fetch failed", "document_id", documentID, "error", err)
		return []ChunkRecord{}
	}

	out := make([]ChunkRecord, 0, len(records))
	for _, r := range records {
		out = append(out, ChunkRecord{
			Key:      r.ID,
			ChunkID:  intFromMeta(r.Metadata["chunk_id"]),
			Content:  r.Content,
			Metadata: r.Metadata,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ChunkID < out[b].ChunkID })
	return out
}

// DeleteDocument removes every chunk of the document. False means nothing
// matched or the backend failed.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) bool {
	deleted, err := i.store.DeleteByFilter(ctx, map[string]any{"document_id": documentID})
	if err != nil {
		i.log.Error("Vector delete failed", "document_id", documentID, "error", err)
		return false
	}
	if deleted == 0 {
		i.log.Warn("No chunks found for document", "document_id", documentID)
		return false
	}
	i.log.Info("Document chunks deleted", "document_id", documentID, "chunks", deleted)
	return true
}

// DeleteByTenant removes every chunk owned by the tenant; used when a tenant
// is deprovisioned.
func (i *Index) DeleteByTenant(ctx context.Context, tenantID string) int {
	deleted, err := i.store.DeleteByFilter(ctx, map[string]any{"tenant_id": tenantID})
	if err != nil {
		i.log.Error("Tenant vector delete failed", "tenant_id", tenantID, "error", err)
		return 0
	}
	return deleted
}

func (i *Index) Stats(ctx context.Context) Stats {
	out := Stats{
		Collection:  i.collection,
		LastUpdated: time.Now().UTC(),
	}
	total, err := i.store.Count(ctx)
	if err != nil {
		i.log.Error("Vector count failed", "error", err)
		return out
	}
	out.TotalChunks = total

	records, err := i.store.FetchByFilter(ctx, nil)
	if err != nil {
		i.log.Error("Vector scan failed", "error", err)
		return out
	}
	seen := make(map[string]struct{})
	for _, r := range records {
		if id, ok := r.Metadata["document_id"]; ok {
			seen[fmt.Sprint(id)] = struct{}{}
		}
	}
	out.UniqueDocuments = len(seen)
	return out
}

// intFromMeta tolerates the numeric shapes metadata takes after provider
// round-trips: Go ints in memory, float64 from JSON, strings from chromem.
func intFromMeta(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return 0
}
