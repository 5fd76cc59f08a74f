package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
)

// SupportedUploadTypes is the upload allow-list. PDF uploads are accepted and
// stored but text extraction for them is not implemented, so they stay
// unprocessed until a parser is wired in.
var SupportedUploadTypes = []string{".pdf", ".md", ".markdown", ".html", ".htm", ".txt"}

type Result struct {
	Text  string
	Title string
}

func IsSupportedUploadType(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, t := range SupportedUploadTypes {
		if ext == t {
			return true
		}
	}
	return false
}

// Extract reads the file and returns cleaned text plus a best-effort title.
func Extract(path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}

	var text string
	switch ext {
	case ".txt":
		text = string(raw)
	case ".md", ".markdown":
		text = stripMarkdown(string(raw))
	case ".html", ".htm":
		text = stripHTML(string(raw))
	case ".pdf":
		return Result{}, fmt.Errorf("text extraction for %s: %w", ext, apperrors.ErrInvalidArgument)
	default:
		return Result{}, fmt.Errorf("unsupported file type %q: %w", ext, apperrors.ErrInvalidArgument)
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return Result{}, fmt.Errorf("document contains no readable text: %w", apperrors.ErrInvalidArgument)
	}
	return Result{
		Text:  cleaned,
		Title: extractTitle(string(raw), cleaned, ext),
	}, nil
}

var (
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
	newlineRuns  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	mdHeading    = regexp.MustCompile(`^#{1,6}\s+`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdEmphasis   = regexp.MustCompile("[*_`]{1,3}")
)

// CleanText normalizes whitespace and typographic characters while keeping
// paragraph breaks, which the chunker relies on.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = controlChars.ReplaceAllString(text, "")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"–", "-", "—", "-",
	)
	text = replacer.Replace(text)

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = mdHeading.ReplaceAllString(line, "")
		line = mdLink.ReplaceAllString(line, "$1")
		line = mdEmphasis.ReplaceAllString(line, "")
		line = strings.TrimPrefix(line, "> ")
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			line = "• " + strings.TrimSpace(line)[2:]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func stripHTML(content string) string {
	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "tr":
				sb.WriteString("\n")
			}
		case html.TextNode:
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return sb.String()
}

// extractTitle prefers a leading markdown heading or the HTML <title>, then
// falls back to the first substantial line of the cleaned text.
func extractTitle(raw, cleaned, ext string) string {
	switch ext {
	case ".md", ".markdown":
		lines := strings.Split(raw, "\n")
		limit := len(lines)
		if limit > 10 {
			limit = 10
		}
		for _, line := range lines[:limit] {
			if strings.HasPrefix(line, "# ") {
				return strings.TrimSpace(line[2:])
			}
			if strings.HasPrefix(line, "## ") {
				return strings.TrimSpace(line[3:])
			}
		}
	case ".html", ".htm":
		if t := htmlTitle(raw); t != "" {
			return t
		}
	}
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 3 {
			if len(line) > 100 {
				line = line[:100]
			}
			return line
		}
	}
	return ""
}

func htmlTitle(content string) string {
	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}
	var find func(n *html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				return strings.TrimSpace(n.FirstChild.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(node)
}
