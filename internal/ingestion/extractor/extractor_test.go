package extractor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestIsSupportedUploadType(t *testing.T) {
	for _, ext := range SupportedUploadTypes {
		if !IsSupportedUploadType(ext) {
			t.Fatalf("supported type rejected: %s", ext)
		}
	}
	if IsSupportedUploadType(".exe") {
		t.Fatalf(".exe accepted")
	}
	if !IsSupportedUploadType(" .TXT ") {
		t.Fatalf("case/space normalization failed for .TXT")
	}
}

func TestExtractPlainText(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "First line.\n\nSecond paragraph.")
	got, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.Text, "Second paragraph.") {
		t.Fatalf("extracted text missing content: %q", got.Text)
	}
	if got.Title != "First line." {
		t.Fatalf("title: want=%q got=%q", "First line.", got.Title)
	}
}

func TestExtractMarkdownTitleAndFormatting(t *testing.T) {
	path := writeTempFile(t, "doc.md", "# Quarterly Report\n\nSome **bold** text with a [link](https://example.com).")
	got, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Title != "Quarterly Report" {
		t.Fatalf("title: want=%q got=%q", "Quarterly Report", got.Title)
	}
	if strings.Contains(got.Text, "**") || strings.Contains(got.Text, "](") {
		t.Fatalf("markdown syntax survived extraction: %q", got.Text)
	}
	if !strings.Contains(got.Text, "link") {
		t.Fatalf("link text lost: %q", got.Text)
	}
}

func TestExtractHTMLStripsMarkupAndFindsTitle(t *testing.T) {
	path := writeTempFile(t, "page.html", `<html><head><title>Welcome Page</title><style>p{color:red}</style></head><body><p>Visible text.</p><script>alert(1)</script></body></html>`)
	got, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Title != "Welcome Page" {
		t.Fatalf("title: want=%q got=%q", "Welcome Page", got.Title)
	}
	if !strings.Contains(got.Text, "Visible text.") {
		t.Fatalf("body text missing: %q", got.Text)
	}
	if strings.Contains(got.Text, "alert") || strings.Contains(got.Text, "color:red") {
		t.Fatalf("script/style content leaked: %q", got.Text)
	}
}

func TestExtractPDFIsNotImplemented(t *testing.T) {
	path := writeTempFile(t, "file.pdf", "%PDF-1.4")
	_, err := Extract(path)
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("pdf extraction: want=ErrInvalidArgument got=%v", err)
	}
}

func TestCleanTextNormalizesWhitespaceAndQuotes(t *testing.T) {
	in := "He said “hello”  \t twice.\n\n\n\nNext   paragraph — done."
	got := CleanText(in)

	if !strings.Contains(got, `"hello"`) {
		t.Fatalf("smart quotes not normalized: %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("space runs not collapsed: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("newline runs not collapsed: %q", got)
	}
	if !strings.Contains(got, "\n\n") {
		t.Fatalf("paragraph break lost: %q", got)
	}
}

func TestCleanTextEmpty(t *testing.T) {
	if got := CleanText(""); got != "" {
		t.Fatalf("empty input: want=%q got=%q", "", got)
	}
}
