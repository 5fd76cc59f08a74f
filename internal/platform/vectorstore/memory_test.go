package vectorstore

import (
	"context"
	"testing"

	"github.com/docquery/docquery-backend/internal/platform/logger"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewMemoryStore(log)
}

func seedStore(t *testing.T, s *MemoryStore) {
	t.Helper()
	err := s.Upsert(context.Background(), []Vector{
		{ID: "a", Values: []float32{1, 0}, Content: "alpha", Metadata: map[string]any{"tenant_id": "t1", "document_id": "d1"}},
		{ID: "b", Values: []float32{0.9, 0.1}, Content: "beta", Metadata: map[string]any{"tenant_id": "t1", "document_id": "d1"}},
		{ID: "c", Values: []float32{0, 1}, Content: "gamma", Metadata: map[string]any{"tenant_id": "t2", "document_id": "d2"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestMemoryStoreQueryOrdersBySimilarity(t *testing.T) {
	s := newTestMemoryStore(t)
	seedStore(t, s)

	got, err := s.Query(context.Background(), []float32{1, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("match count: want=3 got=%d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("match order: want=[a b c] got=[%s %s %s]", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %f <= %f", got[0].Score, got[1].Score)
	}
}

func TestMemoryStoreQueryHonorsFilterAndTopK(t *testing.T) {
	s := newTestMemoryStore(t)
	seedStore(t, s)

	got, err := s.Query(context.Background(), []float32{1, 0}, 1, map[string]any{"tenant_id": "t1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("match count: want=1 got=%d", len(got))
	}
	if got[0].ID != "a" {
		t.Fatalf("best match: want=a got=%s", got[0].ID)
	}

	got, err = s.Query(context.Background(), []float32{1, 0}, 10, map[string]any{"tenant_id": "t2"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("tenant filter leaked: got=%+v", got)
	}
}

func TestMemoryStoreQueryRequiresEmbedding(t *testing.T) {
	s := newTestMemoryStore(t)
	if _, err := s.Query(context.Background(), nil, 5, nil); err == nil {
		t.Fatalf("empty query vector accepted")
	}
}

func TestMemoryStoreUpsertValidation(t *testing.T) {
	s := newTestMemoryStore(t)
	if err := s.Upsert(context.Background(), []Vector{{ID: " ", Values: []float32{1}}}); err == nil {
		t.Fatalf("blank id accepted")
	}
	if err := s.Upsert(context.Background(), []Vector{{ID: "x"}}); err == nil {
		t.Fatalf("empty values accepted")
	}
	if count, _ := s.Count(context.Background()); count != 0 {
		t.Fatalf("invalid upsert stored entries: %d", count)
	}
}

func TestMemoryStoreFetchByFilter(t *testing.T) {
	s := newTestMemoryStore(t)
	seedStore(t, s)

	got, err := s.FetchByFilter(context.Background(), map[string]any{"document_id": "d1"})
	if err != nil {
		t.Fatalf("FetchByFilter: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("record count: want=2 got=%d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("records not sorted by id: got=[%s %s]", got[0].ID, got[1].ID)
	}

	all, err := s.FetchByFilter(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchByFilter nil: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("nil filter: want=3 got=%d", len(all))
	}
}

func TestMemoryStoreDeleteByFilter(t *testing.T) {
	s := newTestMemoryStore(t)
	seedStore(t, s)

	deleted, err := s.DeleteByFilter(context.Background(), map[string]any{"tenant_id": "t1"})
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted count: want=2 got=%d", deleted)
	}
	count, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("remaining count: want=1 got=%d", count)
	}

	deleted, err = s.DeleteByFilter(context.Background(), map[string]any{"tenant_id": "t1"})
	if err != nil {
		t.Fatalf("repeat DeleteByFilter: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("repeat delete count: want=0 got=%d", deleted)
	}
}

func TestMetadataMatchesComparesStringForms(t *testing.T) {
	meta := map[string]any{"chunk_id": 3}
	if !metadataMatches(meta, map[string]any{"chunk_id": "3"}) {
		t.Fatalf("numeric metadata did not match its string form")
	}
	if metadataMatches(meta, map[string]any{"chunk_id": 4}) {
		t.Fatalf("mismatched value matched")
	}
	if metadataMatches(meta, map[string]any{"missing": 1}) {
		t.Fatalf("missing key matched")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors: want~1 got=%f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: want=0 got=%f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("length mismatch: want=0 got=%f", got)
	}
}
