package chunker

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

func newTestChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	c, err := New(log, size, overlap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsOverlapNotSmallerThanSize(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	if _, err := New(log, 100, 100); err == nil {
		t.Fatalf("New accepted overlap == size")
	} else if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("New error: want=ErrInvalidArgument got=%v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := newTestChunker(t, 0, -1)
	if c.size != DefaultChunkSize {
		t.Fatalf("default size: want=%d got=%d", DefaultChunkSize, c.size)
	}
	if c.overlap != DefaultChunkOverlap {
		t.Fatalf("default overlap: want=%d got=%d", DefaultChunkOverlap, c.overlap)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := newTestChunker(t, 100, 20)
	if got := c.Chunk("   \n\t "); len(got) != 0 {
		t.Fatalf("whitespace input: want=0 chunks got=%d", len(got))
	}
}

func TestChunkNonEmptyInputYieldsAtLeastOneChunk(t *testing.T) {
	c := newTestChunker(t, 100, 20)
	got := c.Chunk("hello world")
	if len(got) == 0 {
		t.Fatalf("non-empty input yielded no chunks")
	}
	if got[0].Content != "hello world" {
		t.Fatalf("chunk content: want=%q got=%q", "hello world", got[0].Content)
	}
}

func TestChunkIndexesAndSizes(t *testing.T) {
	c := newTestChunker(t, 80, 10)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("Paragraph about topic number with enough words to matter.\n\n")
	}
	got := c.Chunk(sb.String())
	if len(got) < 2 {
		t.Fatalf("long input: want>=2 chunks got=%d", len(got))
	}
	for i, chunk := range got {
		if chunk.Index != i {
			t.Fatalf("chunk index: want=%d got=%d", i, chunk.Index)
		}
		if chunk.Size != len(chunk.Content) {
			t.Fatalf("chunk %d size: want=%d got=%d", i, len(chunk.Content), chunk.Size)
		}
		if strings.TrimSpace(chunk.Content) == "" {
			t.Fatalf("chunk %d is blank", i)
		}
	}
}

func TestSplitParagraphsKeepsOversizedParagraphWhole(t *testing.T) {
	c := newTestChunker(t, 50, 10)
	long := strings.Repeat("x", 200)
	parts := c.splitParagraphs(long + "\n\nshort")
	if len(parts) != 2 {
		t.Fatalf("paragraph split: want=2 parts got=%d", len(parts))
	}
	if parts[0] != long {
		t.Fatalf("oversized paragraph was altered")
	}
}
