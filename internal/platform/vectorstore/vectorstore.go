package vectorstore

import "context"

// Vector is one embedded chunk. Content travels with the vector so the
// relational store never has to hold chunk text.
type Vector struct {
	ID       string
	Values   []float32
	Content  string
	Metadata map[string]any
}

// Match is a similarity search hit. Score is similarity, higher is better.
type Match struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}

// Record is a stored vector's payload without its score.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// VectorStore is the provider boundary. Filters are equality matches on
// metadata keys; a nil filter matches everything.
type VectorStore interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]Match, error)
	FetchByFilter(ctx context.Context, filter map[string]any) ([]Record, error)
	DeleteByFilter(ctx context.Context, filter map[string]any) (int, error)
	Count(ctx context.Context) (int, error)
}
