package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators prefer paragraph boundaries, then lines, then words.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

type Chunk struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

type Chunker struct {
	log     *logger.Logger
	size    int
	overlap int
}

func New(log *logger.Logger, size, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d: %w", overlap, size, apperrors.ErrInvalidArgument)
	}
	return &Chunker{
		log:     log.With("service", "Chunker"),
		size:    size,
		overlap: overlap,
	}, nil
}

// Chunk splits text on natural boundaries, keeping the configured overlap
// between adjacent chunks. When the recursive splitter fails it falls back to
// a plain paragraph accumulator, so non-empty input always yields at least one
// chunk. Fallback chunks may exceed the size limit when a single paragraph
// does.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return []Chunk{}
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators(defaultSeparators),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		c.log.Warn("Recursive splitter failed, using paragraph fallback", "error", err)
		parts = c.splitParagraphs(text)
	}

	out := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, Chunk{
			Index:   len(out),
			Content: part,
			Size:    len(part),
		})
	}
	if len(out) == 0 {
		// Splitter dropped everything; the fallback keeps the text intact.
		for _, part := range c.splitParagraphs(text) {
			if strings.TrimSpace(part) == "" {
				continue
			}
			out = append(out, Chunk{
				Index:   len(out),
				Content: part,
				Size:    len(part),
			})
		}
	}
	return out
}

// splitParagraphs greedily packs paragraphs into chunks of at most the
// configured size. A paragraph longer than the size becomes its own chunk.
func (c *Chunker) splitParagraphs(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > c.size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	if len(out) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
