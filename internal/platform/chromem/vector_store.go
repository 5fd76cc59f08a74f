package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/platform/vectorstore"
)

type Config struct {
	Path       string
	Collection string
	VectorDim  int
	Compress   bool
}

// Store is an embedded persistent vector store. It serves single-node
// deployments that want durable vectors without running Qdrant.
type Store struct {
	log        *logger.Logger
	collection *chromemgo.Collection
	dim        int

	mu sync.Mutex
}

func NewStore(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("chromem path required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		cfg.Collection = "documents"
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("chromem vector dim required")
	}

	db, err := chromemgo.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %q: %w", cfg.Path, err)
	}

	// Embeddings always arrive precomputed; the collection-level embedding
	// function must never run.
	rejectEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem store requires precomputed embeddings")
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, rejectEmbed)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection %q: %w", cfg.Collection, err)
	}

	log.With("service", "ChromemVectorStore").Info(
		"Chromem vector store selected",
		"provider", "chromem",
		"path", cfg.Path,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return &Store{
		log:        log.With("service", "ChromemVectorStore"),
		collection: collection,
		dim:        cfg.VectorDim,
	}, nil
}

func (s *Store) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	docs := make([]chromemgo.Document, 0, len(vectors))
	for _, v := range vectors {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("vector id is required")
		}
		if len(v.Values) != s.dim {
			return fmt.Errorf("vector %q dimension mismatch: expected=%d got=%d", v.ID, s.dim, len(v.Values))
		}
		docs = append(docs, chromemgo.Document{
			ID:        v.ID,
			Content:   v.Content,
			Embedding: v.Values,
			Metadata:  stringifyMetadata(v.Metadata),
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.AddDocuments(ctx, docs, 1)
}

func (s *Store) Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected=%d got=%d", s.dim, len(embedding))
	}
	if topK <= 0 {
		topK = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.collection.Count()
	if count == 0 {
		return []vectorstore.Match{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, topK, stringifyMetadata(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]vectorstore.Match, 0, len(results))
	for _, r := range results {
		out = append(out, vectorstore.Match{
			ID:       r.ID,
			Score:    float64(r.Similarity),
			Content:  r.Content,
			Metadata: anyMetadata(r.Metadata),
		})
	}
	return out, nil
}

// FetchByFilter scans via a probe query because chromem exposes no direct
// metadata scan. The probe vector is arbitrary; every stored document is
// returned and only the filter decides membership.
func (s *Store) FetchByFilter(ctx context.Context, filter map[string]any) ([]vectorstore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchByFilterLocked(ctx, filter)
}

// fetchByFilterLocked requires s.mu to be held.
func (s *Store) fetchByFilterLocked(ctx context.Context, filter map[string]any) ([]vectorstore.Record, error) {
	count := s.collection.Count()
	if count == 0 {
		return []vectorstore.Record{}, nil
	}

	probe := make([]float32, s.dim)
	probe[0] = 1
	results, err := s.collection.QueryEmbedding(ctx, probe, count, stringifyMetadata(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem scan: %w", err)
	}

	out := make([]vectorstore.Record, 0, len(results))
	for _, r := range results {
		out = append(out, vectorstore.Record{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: anyMetadata(r.Metadata),
		})
	}
	return out, nil
}

// DeleteByFilter counts and deletes under one lock acquisition so the
// returned count cannot go stale against a concurrent upsert.
func (s *Store) DeleteByFilter(ctx context.Context, filter map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched, err := s.fetchByFilterLocked(ctx, filter)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if err := s.collection.Delete(ctx, stringifyMetadata(filter), nil); err != nil {
		return 0, fmt.Errorf("chromem delete: %w", err)
	}
	return len(matched), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Count(), nil
}

// chromem metadata is string-typed; numeric values round-trip through their
// decimal form.
func stringifyMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func anyMetadata(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
