package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/docquery/docquery-backend/internal/platform/logger"
)

type memoryEntry struct {
	values   []float32
	content  string
	metadata map[string]any
}

// MemoryStore keeps vectors in process memory. It is the dev-mode default and
// the store used by unit tests; semantics match the remote providers.
type MemoryStore struct {
	log *logger.Logger

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		log:     log.With("service", "MemoryVectorStore"),
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("vector id is required")
		}
		if len(v.Values) == 0 {
			return fmt.Errorf("vector %q has empty values", v.ID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		s.entries[v.ID] = memoryEntry{
			values:   append([]float32(nil), v.Values...),
			content:  v.Content,
			metadata: cloneMetadata(v.Metadata),
		}
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Match, 0, topK)
	for id, e := range s.entries {
		if !metadataMatches(e.metadata, filter) {
			continue
		}
		out = append(out, Match{
			ID:       id,
			Score:    cosineSimilarity(embedding, e.values),
			Content:  e.content,
			Metadata: cloneMetadata(e.metadata),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *MemoryStore) FetchByFilter(ctx context.Context, filter map[string]any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0)
	for id, e := range s.entries {
		if !metadataMatches(e.metadata, filter) {
			continue
		}
		out = append(out, Record{
			ID:       id,
			Content:  e.content,
			Metadata: cloneMetadata(e.metadata),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, filter map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, e := range s.entries {
		if metadataMatches(e.metadata, filter) {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func cloneMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// metadataMatches compares values by their string form so numeric metadata
// survives the JSON round-trips the remote providers perform.
func metadataMatches(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
