package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/platform/openai"
	"github.com/docquery/docquery-backend/internal/vectorindex"
)

type fakeRetriever struct {
	results []vectorindex.Result
	chunks  []vectorindex.ChunkRecord
}

func (f *fakeRetriever) Retrieve(ctx context.Context, tenantID, query string, n int, filter map[string]any) []vectorindex.Result {
	return f.results
}

func (f *fakeRetriever) DocumentChunks(ctx context.Context, tenantID, documentID string) []vectorindex.ChunkRecord {
	return f.chunks
}

type fakeLLM struct {
	completeText string
	completeErr  error
	lastComplete openai.CompletionRequest

	deltas    []string
	streamErr error
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeLLM) Complete(ctx context.Context, req openai.CompletionRequest) (openai.Completion, error) {
	f.lastComplete = req
	if f.completeErr != nil {
		return openai.Completion{}, f.completeErr
	}
	return openai.Completion{
		Text:             f.completeText,
		Model:            "test-model",
		PromptTokens:     30,
		CompletionTokens: 12,
		TotalTokens:      42,
	}, nil
}

func (f *fakeLLM) StreamComplete(ctx context.Context, req openai.CompletionRequest, onDelta func(string)) (string, error) {
	var full strings.Builder
	for _, d := range f.deltas {
		full.WriteString(d)
		if onDelta != nil {
			onDelta(d)
		}
	}
	if f.streamErr != nil {
		return "", f.streamErr
	}
	return full.String(), nil
}

func (f *fakeLLM) Ping(ctx context.Context) error { return f.completeErr }

func (f *fakeLLM) Model() string { return "test-model" }

func newTestRAG(t *testing.T, retriever Retriever, llm openai.Client) *Service {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return New(log, retriever, llm)
}

func sampleResults() []vectorindex.Result {
	return []vectorindex.Result{
		{
			Key:        "doc_d1_chunk_0",
			Content:    "The warranty lasts two years.",
			Similarity: 0.91,
			Rank:       1,
			Metadata:   map[string]any{"document_id": "d1", "filename": "warranty.txt", "chunk_id": 0},
		},
		{
			Key:        "doc_d1_chunk_1",
			Content:    "Returns are accepted within 30 days.",
			Similarity: 0.84,
			Rank:       2,
			Metadata:   map[string]any{"document_id": "d1", "filename": "warranty.txt", "chunk_id": 1},
		},
	}
}

func TestAnswerWithoutContext(t *testing.T) {
	svc := newTestRAG(t, &fakeRetriever{}, &fakeLLM{})

	got := svc.Answer(context.Background(), "t1", "anything", QueryOptions{})
	if got.Success {
		t.Fatalf("no-context answer reported success")
	}
	if got.Response != noContextResponse {
		t.Fatalf("no-context response: want=%q got=%q", noContextResponse, got.Response)
	}
	if got.Metadata["chunks_retrieved"] != 0 {
		t.Fatalf("chunks_retrieved: want=0 got=%v", got.Metadata["chunks_retrieved"])
	}
	if len(got.Citations) != 0 {
		t.Fatalf("no-context answer carried citations: %d", len(got.Citations))
	}
}

func TestAnswerBuildsPromptAndCitations(t *testing.T) {
	llm := &fakeLLM{completeText: "Two years."}
	svc := newTestRAG(t, &fakeRetriever{results: sampleResults()}, llm)

	got := svc.Answer(context.Background(), "t1", "How long is the warranty?", QueryOptions{})
	if !got.Success {
		t.Fatalf("answer failed: %q", got.Response)
	}
	if got.Response != "Two years." {
		t.Fatalf("response: want=%q got=%q", "Two years.", got.Response)
	}

	system := llm.lastComplete.System
	if !strings.Contains(system, "Document 1: warranty.txt") {
		t.Fatalf("context block missing document header: %q", system)
	}
	if !strings.Contains(system, "Relevance Score: 0.910") {
		t.Fatalf("context block missing relevance score: %q", system)
	}
	if !strings.Contains(system, "How long is the warranty?") {
		t.Fatalf("question not rendered into prompt: %q", system)
	}
	if strings.Contains(system, "{context}") || strings.Contains(system, "{question}") {
		t.Fatalf("placeholders survived rendering: %q", system)
	}

	if len(got.Citations) != 2 {
		t.Fatalf("citation count: want=2 got=%d", len(got.Citations))
	}
	if got.Citations[0].ID != "citation_0_doc_d1_chunk_0" {
		t.Fatalf("citation id: want=%q got=%q", "citation_0_doc_d1_chunk_0", got.Citations[0].ID)
	}
	if got.Citations[1].ChunkIndex != 1 {
		t.Fatalf("citation chunk index: want=1 got=%d", got.Citations[1].ChunkIndex)
	}

	if got.Metadata["total_tokens"] != 42 {
		t.Fatalf("total_tokens: want=42 got=%v", got.Metadata["total_tokens"])
	}
	if got.Metadata["model_used"] != "test-model" {
		t.Fatalf("model_used: want=test-model got=%v", got.Metadata["model_used"])
	}
}

func TestAnswerCustomSystemPromptSkipsTemplate(t *testing.T) {
	llm := &fakeLLM{completeText: "ok"}
	svc := newTestRAG(t, &fakeRetriever{results: sampleResults()}, llm)

	svc.Answer(context.Background(), "t1", "q", QueryOptions{SystemPrompt: "Answer in French."})
	if llm.lastComplete.System != "Answer in French." {
		t.Fatalf("custom system prompt replaced: %q", llm.lastComplete.System)
	}
}

func TestAnswerLLMFailure(t *testing.T) {
	llm := &fakeLLM{completeErr: fmt.Errorf("rate limited")}
	svc := newTestRAG(t, &fakeRetriever{results: sampleResults()}, llm)

	got := svc.Answer(context.Background(), "t1", "q", QueryOptions{})
	if got.Success {
		t.Fatalf("failed completion reported success")
	}
	want := "Sorry, I encountered an error while processing your request: rate limited"
	if got.Response != want {
		t.Fatalf("error response: want=%q got=%q", want, got.Response)
	}
}

func TestStreamEmitsContentThenSingleComplete(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"Two ", "years", "."}}
	svc := newTestRAG(t, &fakeRetriever{results: sampleResults()}, llm)

	var events []StreamEvent
	svc.Stream(context.Background(), "t1", "q", QueryOptions{}, func(ev StreamEvent) {
		events = append(events, ev)
	})

	if len(events) != 4 {
		t.Fatalf("event count: want=4 got=%d", len(events))
	}

	var contentBuf strings.Builder
	terminals := 0
	for _, ev := range events {
		switch ev.Type {
		case "content":
			contentBuf.WriteString(ev.Content)
		case "complete", "error":
			terminals++
		default:
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events: want=1 got=%d", terminals)
	}

	last := events[len(events)-1]
	if last.Type != "complete" {
		t.Fatalf("last event: want=complete got=%s", last.Type)
	}
	if last.Content != contentBuf.String() {
		t.Fatalf("complete content mismatch: deltas=%q complete=%q", contentBuf.String(), last.Content)
	}
	if len(last.Citations) != 2 {
		t.Fatalf("complete citations: want=2 got=%d", len(last.Citations))
	}
	if last.Metadata["total_length"] != len(last.Content) {
		t.Fatalf("total_length: want=%d got=%v", len(last.Content), last.Metadata["total_length"])
	}
}

func TestStreamWithoutContextEmitsSingleError(t *testing.T) {
	svc := newTestRAG(t, &fakeRetriever{}, &fakeLLM{})

	var events []StreamEvent
	svc.Stream(context.Background(), "t1", "q", QueryOptions{}, func(ev StreamEvent) {
		events = append(events, ev)
	})

	if len(events) != 1 {
		t.Fatalf("event count: want=1 got=%d", len(events))
	}
	if events[0].Type != "error" {
		t.Fatalf("event type: want=error got=%s", events[0].Type)
	}
	if events[0].Content != noContextStreamResponse {
		t.Fatalf("error content: want=%q got=%q", noContextStreamResponse, events[0].Content)
	}
}

func TestStreamFailureAfterDeltasKeepsPartials(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"partial "}, streamErr: fmt.Errorf("connection reset")}
	svc := newTestRAG(t, &fakeRetriever{results: sampleResults()}, llm)

	var events []StreamEvent
	svc.Stream(context.Background(), "t1", "q", QueryOptions{}, func(ev StreamEvent) {
		events = append(events, ev)
	})

	if len(events) != 2 {
		t.Fatalf("event count: want=2 got=%d", len(events))
	}
	if events[0].Type != "content" || events[0].Content != "partial " {
		t.Fatalf("partial delta lost: %+v", events[0])
	}
	if events[1].Type != "error" {
		t.Fatalf("terminal type: want=error got=%s", events[1].Type)
	}
	if !strings.Contains(events[1].Content, "connection reset") {
		t.Fatalf("error detail missing: %q", events[1].Content)
	}
}

func TestSummarizeUsesLowTemperatureBudget(t *testing.T) {
	llm := &fakeLLM{completeText: "A summary."}
	retriever := &fakeRetriever{chunks: []vectorindex.ChunkRecord{
		{ChunkID: 0, Content: "part one"},
		{ChunkID: 1, Content: "part two"},
	}}
	svc := newTestRAG(t, retriever, llm)

	got := svc.Summarize(context.Background(), "t1", "d1", 400)
	if !got.Success {
		t.Fatalf("summary failed: %q", got.Summary)
	}
	if llm.lastComplete.Temperature != 0.3 {
		t.Fatalf("summary temperature: want=0.3 got=%f", llm.lastComplete.Temperature)
	}
	if llm.lastComplete.MaxTokens != 100 {
		t.Fatalf("summary max tokens: want=100 got=%d", llm.lastComplete.MaxTokens)
	}
	if !strings.Contains(llm.lastComplete.User, "part one\n\npart two") {
		t.Fatalf("chunk content not joined into prompt: %q", llm.lastComplete.User)
	}
	if got.Metadata["chunks_used"] != 2 {
		t.Fatalf("chunks_used: want=2 got=%v", got.Metadata["chunks_used"])
	}
}

func TestSummarizeWithoutChunks(t *testing.T) {
	svc := newTestRAG(t, &fakeRetriever{}, &fakeLLM{})
	got := svc.Summarize(context.Background(), "t1", "d1", 0)
	if got.Success {
		t.Fatalf("empty document summarized")
	}
	if got.Summary != "No content available for summarization." {
		t.Fatalf("empty summary message: got=%q", got.Summary)
	}
}

func TestKeywordsSplitsCommaSeparatedOutput(t *testing.T) {
	llm := &fakeLLM{completeText: "warranty, returns , refund policy,,"}
	retriever := &fakeRetriever{chunks: []vectorindex.ChunkRecord{{Content: "text"}}}
	svc := newTestRAG(t, retriever, llm)

	got := svc.Keywords(context.Background(), "t1", "d1", 5)
	if !got.Success {
		t.Fatalf("keyword extraction failed")
	}
	want := []string{"warranty", "returns", "refund policy"}
	if len(got.Keywords) != len(want) {
		t.Fatalf("keyword count: want=%d got=%d (%v)", len(want), len(got.Keywords), got.Keywords)
	}
	for i := range want {
		if got.Keywords[i] != want[i] {
			t.Fatalf("keyword %d: want=%q got=%q", i, want[i], got.Keywords[i])
		}
	}
	if llm.lastComplete.Temperature != 0.2 {
		t.Fatalf("keywords temperature: want=0.2 got=%f", llm.lastComplete.Temperature)
	}
}

func TestSimpleChatPropagatesErrors(t *testing.T) {
	svc := newTestRAG(t, &fakeRetriever{}, &fakeLLM{completeErr: fmt.Errorf("down")})
	if _, err := svc.SimpleChat(context.Background(), "hi", QueryOptions{}); err == nil {
		t.Fatalf("SimpleChat swallowed the error")
	}
}

func TestQueryOptionsDefaults(t *testing.T) {
	got := QueryOptions{}.withDefaults()
	if got.NContextChunks != 5 {
		t.Fatalf("default chunks: want=5 got=%d", got.NContextChunks)
	}
	if got.Temperature == nil || *got.Temperature != 0.7 {
		t.Fatalf("default temperature: want=0.7 got=%v", got.Temperature)
	}
	if got.MaxTokens != 1000 {
		t.Fatalf("default max tokens: want=1000 got=%d", got.MaxTokens)
	}
}

func TestAnswerHonorsExplicitZeroTemperature(t *testing.T) {
	llm := &fakeLLM{completeText: "deterministic"}
	svc := newTestRAG(t, &fakeRetriever{results: sampleResults()}, llm)

	zero := 0.0
	got := svc.Answer(context.Background(), "t1", "q", QueryOptions{Temperature: &zero})
	if !got.Success {
		t.Fatalf("answer failed: %q", got.Response)
	}
	if llm.lastComplete.Temperature != 0 {
		t.Fatalf("model temperature: want=0 got=%f", llm.lastComplete.Temperature)
	}
	if got.Metadata["temperature"] != 0.0 {
		t.Fatalf("metadata temperature: want=0 got=%v", got.Metadata["temperature"])
	}
}
