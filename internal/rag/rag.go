package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/platform/openai"
	"github.com/docquery/docquery-backend/internal/vectorindex"
)

const defaultSystemPrompt = `You are Doc Query, an intelligent document assistant. Your role is to help users find and understand information from their uploaded documents.

Key Guidelines:
1. Always base your responses on the provided document context
2. If the context doesn't contain relevant information, say so clearly
3. Provide accurate, helpful, and concise answers
4. Cite specific parts of documents when possible
5. If asked about something not in the documents, politely redirect to the document content
6. Use a friendly, professional tone
7. Structure responses clearly with proper formatting

Document Context: {context}

User Question: {question}`

const noContextResponse = "I couldn't find any relevant information in your documents to answer this question. Please try rephrasing your query or upload relevant documents."

const noContextStreamResponse = "I couldn't find any relevant information in your documents to answer this question."

// Retriever is the slice of the retrieval service the orchestrator needs.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, query string, n int, filter map[string]any) []vectorindex.Result
	DocumentChunks(ctx context.Context, tenantID, documentID string) []vectorindex.ChunkRecord
}

// QueryOptions tune a single generation. Unset values take the defaults the
// API documents: 5 chunks, temperature 0.7, 1000 tokens. Temperature is a
// pointer so an explicit 0 (deterministic generation) stays distinguishable
// from unset.
type QueryOptions struct {
	NContextChunks int
	SystemPrompt   string
	Temperature    *float64
	MaxTokens      int
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.NContextChunks <= 0 {
		o.NContextChunks = 5
	}
	if o.Temperature == nil {
		t := 0.7
		o.Temperature = &t
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1000
	}
	return o
}

type Citation struct {
	ID              string  `json:"id"`
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	Content         string  `json:"content"`
	ChunkIndex      int     `json:"chunk_index"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Answer is the blocking generation result. Failures surface through
// Success=false and an explanatory Response, never an error return.
type Answer struct {
	Success     bool                 `json:"success"`
	Response    string               `json:"response"`
	ContextUsed []vectorindex.Result `json:"context_used"`
	Citations   []Citation           `json:"citations"`
	Metadata    map[string]any       `json:"metadata"`
}

// StreamEvent is one unit of a streaming generation. Type is "content",
// "complete" or "error"; exactly one terminal event closes every stream.
type StreamEvent struct {
	Type        string               `json:"type"`
	Content     string               `json:"content"`
	ContextUsed []vectorindex.Result `json:"context_used,omitempty"`
	Citations   []Citation           `json:"citations,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
}

type SummaryResult struct {
	Success  bool           `json:"success"`
	Summary  string         `json:"summary"`
	Metadata map[string]any `json:"metadata"`
}

type KeywordsResult struct {
	Success  bool           `json:"success"`
	Keywords []string       `json:"keywords"`
	Metadata map[string]any `json:"metadata"`
}

// Service orchestrates retrieval-augmented generation for one query at a
// time: retrieve tenant context, build the prompt, call the model.
type Service struct {
	log       *logger.Logger
	retriever Retriever
	llm       openai.Client
}

func New(log *logger.Logger, retriever Retriever, llm openai.Client) *Service {
	return &Service{
		log:       log.With("service", "RAGService"),
		retriever: retriever,
		llm:       llm,
	}
}

// Answer runs the blocking RAG path. An empty retrieval produces the canned
// no-context response; an LLM failure produces an apologetic response. Both
// carry Success=false.
func (s *Service) Answer(ctx context.Context, tenantID, query string, opts QueryOptions) Answer {
	opts = opts.withDefaults()

	chunks := s.retriever.Retrieve(ctx, tenantID, query, opts.NContextChunks, nil)
	if len(chunks) == 0 {
		return Answer{
			Success:     false,
			Response:    noContextResponse,
			ContextUsed: []vectorindex.Result{},
			Citations:   []Citation{},
			Metadata: map[string]any{
				"chunks_retrieved": 0,
				"total_tokens":     0,
				"model_used":       s.llm.Model(),
			},
		}
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = renderSystemPrompt(buildContext(chunks), query)
	}

	completion, err := s.llm.Complete(ctx, openai.CompletionRequest{
		System:      systemPrompt,
		User:        query,
		Temperature: *opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		s.log.Error("RAG completion failed", "tenant_id", tenantID, "error", err)
		return Answer{
			Success:     false,
			Response:    fmt.Sprintf("Sorry, I encountered an error while processing your request: %s", err.Error()),
			ContextUsed: []vectorindex.Result{},
			Citations:   []Citation{},
			Metadata:    map[string]any{"error": err.Error()},
		}
	}

	return Answer{
		Success:     true,
		Response:    completion.Text,
		ContextUsed: chunks,
		Citations:   buildCitations(chunks),
		Metadata: map[string]any{
			"chunks_retrieved":  len(chunks),
			"total_tokens":      completion.TotalTokens,
			"prompt_tokens":     completion.PromptTokens,
			"completion_tokens": completion.CompletionTokens,
			"model_used":        s.llm.Model(),
			"temperature":       *opts.Temperature,
		},
	}
}

// Stream runs the streaming RAG path. Content events carry deltas as the
// model produces them; the stream ends with exactly one terminal event. A
// failure after content has flowed still terminates with "error" but the
// already emitted partials stand.
func (s *Service) Stream(ctx context.Context, tenantID, query string, opts QueryOptions, emit func(StreamEvent)) {
	opts = opts.withDefaults()

	chunks := s.retriever.Retrieve(ctx, tenantID, query, opts.NContextChunks, nil)
	if len(chunks) == 0 {
		emit(StreamEvent{
			Type:      "error",
			Content:   noContextStreamResponse,
			Citations: []Citation{},
			Metadata:  map[string]any{"chunks_retrieved": 0},
		})
		return
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = renderSystemPrompt(buildContext(chunks), query)
	}

	contentMeta := map[string]any{
		"chunks_retrieved": len(chunks),
		"model_used":       s.llm.Model(),
	}

	full, err := s.llm.StreamComplete(ctx, openai.CompletionRequest{
		System:      systemPrompt,
		User:        query,
		Temperature: *opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}, func(delta string) {
		emit(StreamEvent{
			Type:     "content",
			Content:  delta,
			Metadata: contentMeta,
		})
	})
	if err != nil {
		s.log.Error("RAG stream failed", "tenant_id", tenantID, "error", err)
		emit(StreamEvent{
			Type:     "error",
			Content:  fmt.Sprintf("Sorry, I encountered an error: %s", err.Error()),
			Metadata: map[string]any{"error": err.Error()},
		})
		return
	}

	emit(StreamEvent{
		Type:        "complete",
		Content:     full,
		ContextUsed: chunks,
		Citations:   buildCitations(chunks),
		Metadata: map[string]any{
			"chunks_retrieved": len(chunks),
			"model_used":       s.llm.Model(),
			"temperature":      *opts.Temperature,
			"total_length":     len(full),
		},
	})
}

// Summarize condenses a document's indexed chunks.
func (s *Service) Summarize(ctx context.Context, tenantID, documentID string, maxLength int) SummaryResult {
	if maxLength <= 0 {
		maxLength = 500
	}

	chunks := s.retriever.DocumentChunks(ctx, tenantID, documentID)
	if len(chunks) == 0 {
		return SummaryResult{
			Success:  false,
			Summary:  "No content available for summarization.",
			Metadata: map[string]any{"chunks_used": 0},
		}
	}

	content := joinChunkContent(chunks)
	prompt := fmt.Sprintf(`Please provide a concise summary of the following document content. Focus on the main points and key information.

Document Content:
%s

Summary (max %d characters):`, content, maxLength)

	completion, err := s.llm.Complete(ctx, openai.CompletionRequest{
		System:      "You are a helpful assistant that creates concise, accurate summaries of documents.",
		User:        prompt,
		Temperature: 0.3,
		MaxTokens:   maxLength / 4,
	})
	if err != nil {
		s.log.Error("Summary generation failed", "document_id", documentID, "error", err)
		return SummaryResult{
			Success:  false,
			Summary:  fmt.Sprintf("Failed to generate summary: %s", err.Error()),
			Metadata: map[string]any{"error": err.Error()},
		}
	}

	return SummaryResult{
		Success: true,
		Summary: completion.Text,
		Metadata: map[string]any{
			"chunks_used":    len(chunks),
			"total_tokens":   completion.TotalTokens,
			"model_used":     s.llm.Model(),
			"summary_length": len(completion.Text),
		},
	}
}

// Keywords extracts representative keywords from a document's chunks.
func (s *Service) Keywords(ctx context.Context, tenantID, documentID string, maxKeywords int) KeywordsResult {
	if maxKeywords <= 0 {
		maxKeywords = 10
	}

	chunks := s.retriever.DocumentChunks(ctx, tenantID, documentID)
	if len(chunks) == 0 {
		return KeywordsResult{
			Success:  false,
			Keywords: []string{},
			Metadata: map[string]any{"chunks_used": 0},
		}
	}

	content := joinChunkContent(chunks)
	prompt := fmt.Sprintf(`Extract the %d most important keywords or key phrases from the following document content. Focus on terms that best represent the main topics and concepts.

Document Content:
%s

Keywords (comma-separated):`, maxKeywords, content)

	completion, err := s.llm.Complete(ctx, openai.CompletionRequest{
		System:      "You are a helpful assistant that extracts relevant keywords from documents.",
		User:        prompt,
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		s.log.Error("Keyword extraction failed", "document_id", documentID, "error", err)
		return KeywordsResult{
			Success:  false,
			Keywords: []string{},
			Metadata: map[string]any{"error": err.Error()},
		}
	}

	keywords := make([]string, 0, maxKeywords)
	for _, kw := range strings.Split(completion.Text, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return KeywordsResult{
		Success:  true,
		Keywords: keywords,
		Metadata: map[string]any{
			"chunks_used":    len(chunks),
			"total_tokens":   completion.TotalTokens,
			"model_used":     s.llm.Model(),
			"keywords_count": len(keywords),
		},
	}
}

// SimpleChat answers without any document retrieval; useful for verifying
// the model end to end.
func (s *Service) SimpleChat(ctx context.Context, query string, opts QueryOptions) (Answer, error) {
	opts = opts.withDefaults()

	completion, err := s.llm.Complete(ctx, openai.CompletionRequest{
		System:      "You are Doc Query, a helpful document assistant.",
		User:        query,
		Temperature: *opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Success:     true,
		Response:    completion.Text,
		ContextUsed: []vectorindex.Result{},
		Citations:   []Citation{},
		Metadata: map[string]any{
			"model_used":   s.llm.Model(),
			"total_tokens": completion.TotalTokens,
			"temperature":  *opts.Temperature,
		},
	}, nil
}

// TestConnection verifies the model answers a trivial completion.
func (s *Service) TestConnection(ctx context.Context) (string, error) {
	if err := s.llm.Ping(ctx); err != nil {
		return "", err
	}
	return s.llm.Model(), nil
}

func renderSystemPrompt(contextText, question string) string {
	out := strings.ReplaceAll(defaultSystemPrompt, "{context}", contextText)
	return strings.ReplaceAll(out, "{question}", question)
}

// buildContext renders retrieved chunks into the prompt's context block,
// one numbered section per chunk with its source and relevance.
func buildContext(chunks []vectorindex.Result) string {
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		filename := metaString(chunk.Metadata, "filename", "Unknown")
		parts = append(parts, fmt.Sprintf("Document %d: %s\nRelevance Score: %.3f\nContent: %s\n\n---",
			i+1, filename, chunk.Similarity, chunk.Content))
	}
	return strings.Join(parts, "\n")
}

func buildCitations(chunks []vectorindex.Result) []Citation {
	out := make([]Citation, 0, len(chunks))
	for i, chunk := range chunks {
		out = append(out, Citation{
			ID:              fmt.Sprintf("citation_%d_%s", i, chunk.Key),
			DocumentID:      metaString(chunk.Metadata, "document_id", ""),
			Filename:        metaString(chunk.Metadata, "filename", "Unknown"),
			Content:         chunk.Content,
			ChunkIndex:      metaInt(chunk.Metadata, "chunk_id", i),
			SimilarityScore: chunk.Similarity,
		})
	}
	return out
}

func joinChunkContent(chunks []vectorindex.ChunkRecord) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

func metaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func metaInt(meta map[string]any, key string, fallback int) int {
	v, ok := meta[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		var n int
		if _, err := fmt.Sscanf(t, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
